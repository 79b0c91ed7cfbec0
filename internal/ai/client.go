package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/utils"
)

// Client wraps the Gemini API for both embedding generation and answer
// generation. One Client is constructed per process and shared; the circuit
// breaker and rate limiter protect every call site uniformly.
type Client struct {
	client          *genai.Client
	breaker         *gobreaker.CircuitBreaker
	rateLimiter     *rate.Limiter
	embeddingsModel string
	generationModel string
	timeout         time.Duration
}

func NewClient(cfg *config.Config) (*Client, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, utils.E(utils.KindConfig, "failed to create Gemini client", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// ~10 RPM free-tier budget with some headroom
	rateLimiter := rate.NewLimiter(rate.Limit(9.0/60.0), 2)

	return &Client{
		client:          client,
		breaker:         breaker,
		rateLimiter:     rateLimiter,
		embeddingsModel: cfg.EmbeddingsModel,
		generationModel: cfg.GenerationModel,
		timeout:         time.Duration(cfg.AITimeoutSeconds) * time.Second,
	}, nil
}

// NormalizeText collapses whitespace runs to single spaces and trims the
// result. Applied to every text before it is sent for embedding so that
// re-embedding the same content yields the same vector. Idempotent.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Embed returns the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// maxEmbedBatch is the API limit on contents per BatchEmbedContents call.
const maxEmbedBatch = 100

// EmbedBatch returns one vector per input text, in input order. Texts are
// sent in batched requests of at most maxEmbedBatch contents each; each
// embedding call is billed, so batching is preferred over per-chunk calls.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	tracer := otel.Tracer("ai-client")
	ctx, span := tracer.Start(ctx, "gemini.embed_batch")
	defer span.End()

	span.SetAttributes(
		attribute.Int("gemini.batch_size", len(texts)),
		attribute.String("gemini.model", c.embeddingsModel),
	)

	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vectors := make([][]float32, 0, len(texts))
	for _, sub := range splitIntoBatches(texts, maxEmbedBatch) {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			em := c.client.EmbeddingModel(c.embeddingsModel)
			batch := em.NewBatch()
			for _, text := range sub {
				batch = batch.AddContent(genai.Text(NormalizeText(text)))
			}
			return em.BatchEmbedContents(ctx, batch)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			span.SetAttributes(attribute.Bool("gemini.error", true))
			return nil, utils.E(utils.KindEmbeddingService, "embedding request failed", err)
		}

		resp := result.(*genai.BatchEmbedContentsResponse)
		if len(resp.Embeddings) != len(sub) {
			return nil, utils.E(utils.KindEmbeddingService,
				fmt.Sprintf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(sub)), nil)
		}

		for i, emb := range resp.Embeddings {
			if emb == nil || len(emb.Values) == 0 {
				return nil, utils.E(utils.KindEmbeddingService,
					fmt.Sprintf("empty embedding returned for input %d", len(vectors)+i), nil)
			}
			vectors = append(vectors, emb.Values)
		}
	}

	span.SetAttributes(attribute.Int("gemini.embedding_dim", len(vectors[0])))
	return vectors, nil
}

// splitIntoBatches partitions texts into consecutive groups of at most size
// elements, preserving order. The returned slices alias the input.
func splitIntoBatches(texts []string, size int) [][]string {
	var batches [][]string
	for len(texts) > size {
		batches = append(batches, texts[:size])
		texts = texts[size:]
	}
	if len(texts) > 0 {
		batches = append(batches, texts)
	}
	return batches
}

// Generate invokes the generation model with a system instruction and a
// user prompt and returns the generated text.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int32) (string, error) {
	tracer := otel.Tracer("ai-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", c.generationModel),
		attribute.Int("gemini.prompt_chars", len(userPrompt)),
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		model := c.client.GenerativeModel(c.generationModel)
		model.SetTemperature(temperature)
		model.SetMaxOutputTokens(maxTokens)
		if systemPrompt != "" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(systemPrompt)},
			}
		}
		return model.GenerateContent(ctx, genai.Text(userPrompt))
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", utils.E(utils.KindGenerationService, "generation request failed", err)
	}

	resp := result.(*genai.GenerateContentResponse)
	answer := extractText(resp)
	if answer == "" {
		return "", utils.E(utils.KindGenerationService, "model returned no text candidates", nil)
	}

	span.SetAttributes(attribute.Int("gemini.answer_chars", len(answer)))
	return answer, nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return sb.String()
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
