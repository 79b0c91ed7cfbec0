package services

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// Extractor turns raw document bytes into plain text per format.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract dispatches on the declared format. Corrupt or undecodable input
// surfaces an ExtractionError; an unknown format never reaches this point
// (rejected at the boundary by models.ParseFormat).
func (e *Extractor) Extract(content []byte, format models.DocumentFormat) (string, error) {
	switch format {
	case models.FormatPDF:
		return e.extractPDF(content)
	case models.FormatDocx:
		return e.extractDocx(content)
	case models.FormatHTML:
		return e.extractHTML(content)
	case models.FormatText, models.FormatMarkdown:
		return e.extractPlain(content)
	default:
		return "", utils.E(utils.KindUnsupportedFormat, "unsupported document format: "+string(format), nil)
	}
}

func (e *Extractor) extractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", utils.E(utils.KindExtraction, "failed to open PDF", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			// skip unreadable pages rather than failing the document
			continue
		}
		if strings.TrimSpace(text) != "" {
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n\n")
			}
			textBuilder.WriteString(text)
		}
	}

	return textBuilder.String(), nil
}

// extractDocx reads word/document.xml from the .docx zip archive;
// paragraphs are w:p elements and text runs are w:t elements.
func (e *Extractor) extractDocx(content []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", utils.E(utils.KindExtraction, "failed to open docx archive", err)
	}

	var documentXML []byte
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			rc, err := file.Open()
			if err != nil {
				return "", utils.E(utils.KindExtraction, "failed to read docx document body", err)
			}
			documentXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", utils.E(utils.KindExtraction, "failed to read docx document body", err)
			}
			break
		}
	}
	if documentXML == nil {
		return "", utils.E(utils.KindExtraction, "docx archive has no word/document.xml", nil)
	}

	// Stream the XML and collect w:t text, inserting paragraph breaks at
	// w:p boundaries. Namespace-agnostic on purpose.
	decoder := xml.NewDecoder(bytes.NewReader(documentXML))
	var textBuilder strings.Builder
	var inText bool
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", utils.E(utils.KindExtraction, "malformed docx document body", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				textBuilder.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				textBuilder.Write(t)
			}
		}
	}

	return textBuilder.String(), nil
}

func (e *Extractor) extractHTML(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", utils.E(utils.KindExtraction, "failed to parse HTML", err)
	}

	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("body").Each(func(_ int, selection *goquery.Selection) {
		parts = append(parts, selection.Text())
	})
	if len(parts) == 0 {
		parts = append(parts, doc.Text())
	}

	return strings.Join(parts, "\n\n"), nil
}

func (e *Extractor) extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", utils.E(utils.KindExtraction, "file is not valid UTF-8 text", nil)
	}
	return string(content), nil
}

// FileMetadata collects best-effort metadata about an uploaded document.
func FileMetadata(filename string, size int, format models.DocumentFormat, content []byte) map[string]string {
	metadata := map[string]string{
		"filename": filename,
		"format":   string(format),
	}

	if size > 0 {
		metadata["file_size"] = strconv.Itoa(size)
	}
	if format == models.FormatPDF {
		if reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content))); err == nil {
			metadata["pages"] = strconv.Itoa(reader.NumPage())
			if title := pdfTitle(reader); title != "" {
				metadata["title"] = title
			}
		}
	}
	return metadata
}

// pdfTitle reads the document info Title entry; malformed trailers panic
// inside the pdf parser, so treat any failure as "no title".
func pdfTitle(reader *pdf.Reader) (title string) {
	defer func() {
		if recover() != nil {
			title = ""
		}
	}()
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	return strings.TrimSpace(info.Key("Title").Text())
}
