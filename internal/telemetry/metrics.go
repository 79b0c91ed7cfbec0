package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	QueriesTotal      metric.Int64Counter
	QueryDuration     metric.Float64Histogram
	CacheLookups      metric.Int64Counter
	DocumentsIngested metric.Int64Counter
	ChunksIndexed     metric.Int64Counter
	IngestDuration    metric.Float64Histogram
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("rag-knowledge-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queriesTotal, err := meter.Int64Counter(
		"rag.queries.total",
		metric.WithDescription("Total queries answered"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"rag.query.duration",
		metric.WithDescription("End-to-end query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter(
		"rag.cache.lookups",
		metric.WithDescription("Query cache lookups by outcome"),
	)
	if err != nil {
		return nil, err
	}

	documentsIngested, err := meter.Int64Counter(
		"rag.documents.ingested",
		metric.WithDescription("Documents ingested by outcome"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"rag.chunks.indexed",
		metric.WithDescription("Chunks written to the vector index"),
	)
	if err != nil {
		return nil, err
	}

	ingestDuration, err := meter.Float64Histogram(
		"rag.ingest.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		QueriesTotal:      queriesTotal,
		QueryDuration:     queryDuration,
		CacheLookups:      cacheLookups,
		DocumentsIngested: documentsIngested,
		ChunksIndexed:     chunksIndexed,
		IngestDuration:    ingestDuration,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordQuery records one answered query with its confidence label and
// whether the cache served it.
func (m *Metrics) RecordQuery(confidence string, fromCache bool, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("rag.confidence", confidence),
		attribute.Bool("rag.from_cache", fromCache),
	}

	m.QueriesTotal.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.QueryDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("cache.hit", hit),
	}

	m.CacheLookups.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordIngest records one ingestion attempt.
func (m *Metrics) RecordIngest(format, status string, chunks int, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("document.format", format),
		attribute.String("document.status", status),
	}

	m.DocumentsIngested.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.IngestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	if chunks > 0 {
		m.ChunksIndexed.Add(context.Background(), int64(chunks), metric.WithAttributes(attrs...))
	}
}
