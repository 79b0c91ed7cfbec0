package services

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

func TestExtractPlainText(t *testing.T) {
	extractor := NewExtractor()
	text, err := extractor.Extract([]byte("plain content"), models.FormatText)
	if err != nil {
		t.Fatal(err)
	}
	if text != "plain content" {
		t.Fatalf("got %q", text)
	}

	// markdown passes through as-is
	md := "# Title\n\nBody paragraph."
	text, err = extractor.Extract([]byte(md), models.FormatMarkdown)
	if err != nil {
		t.Fatal(err)
	}
	if text != md {
		t.Fatalf("got %q", text)
	}
}

func TestExtractHTMLStripsMarkup(t *testing.T) {
	html := `<html><head><title>ignored</title><style>body{color:red}</style></head>
<body><script>alert("nope")</script><h1>Heading</h1><p>Paragraph text.</p></body></html>`

	extractor := NewExtractor()
	text, err := extractor.Extract([]byte(html), models.FormatHTML)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Heading") || !strings.Contains(text, "Paragraph text.") {
		t.Fatalf("body text missing: %q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "color:red") {
		t.Fatalf("script/style content leaked: %q", text)
	}
}

func TestExtractDocx(t *testing.T) {
	documentXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	entry, err := writer.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entry.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	extractor := NewExtractor()
	text, err := extractor.Extract(buf.Bytes(), models.FormatDocx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "First paragraph.") {
		t.Fatalf("first paragraph missing: %q", text)
	}
	if !strings.Contains(text, "Second paragraph.") {
		t.Fatalf("split runs not joined: %q", text)
	}
	if !strings.Contains(text, "First paragraph.\n\n") {
		t.Fatalf("paragraph break missing: %q", text)
	}
}

func TestExtractDocxRejectsGarbage(t *testing.T) {
	extractor := NewExtractor()
	_, err := extractor.Extract([]byte("not a zip archive"), models.FormatDocx)
	if !utils.IsKind(err, utils.KindExtraction) {
		t.Fatalf("got %v, want extraction_error", err)
	}
}

func TestExtractPDFRejectsGarbage(t *testing.T) {
	extractor := NewExtractor()
	_, err := extractor.Extract([]byte("%PDF-nope"), models.FormatPDF)
	if !utils.IsKind(err, utils.KindExtraction) {
		t.Fatalf("got %v, want extraction_error", err)
	}
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		declared string
		filename string
		want     models.DocumentFormat
		wantErr  bool
	}{
		{"pdf", "x.bin", models.FormatPDF, false},
		{"", "report.PDF", models.FormatPDF, false},
		{"", "notes.md", models.FormatMarkdown, false},
		{"text", "whatever", models.FormatText, false},
		{"", "page.htm", models.FormatHTML, false},
		{"", "noextension", "", true},
		{"xlsx", "sheet.xlsx", "", true},
	}
	for _, tc := range cases {
		got, err := models.ParseFormat(tc.declared, tc.filename)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseFormat(%q, %q): expected error", tc.declared, tc.filename)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q, %q): %v", tc.declared, tc.filename, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseFormat(%q, %q) = %s, want %s", tc.declared, tc.filename, got, tc.want)
		}
	}
}

func TestFileMetadata(t *testing.T) {
	metadata := FileMetadata("guide.txt", 42, models.FormatText, []byte("irrelevant"))
	if metadata["filename"] != "guide.txt" {
		t.Fatalf("filename = %q", metadata["filename"])
	}
	if metadata["format"] != "txt" {
		t.Fatalf("format = %q", metadata["format"])
	}
	if metadata["file_size"] != "42" {
		t.Fatalf("file_size = %q", metadata["file_size"])
	}
}
