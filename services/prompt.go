package services

import (
	"fmt"
	"strings"

	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/models"
)

// maxHistoryTurns bounds how much conversation history is replayed into
// the prompt.
const maxHistoryTurns = 5

const ragSystemPrompt = `You are an expert assistant that answers questions based solely on the provided context.

Instructions:
1. Answer ONLY from the information in the provided context
2. If the information is not in the context, say clearly "I don't have enough information to answer that question"
3. Be concise but complete
4. When citing information, mention which source document it comes from
5. Keep a professional, clear tone
6. Never invent information that is not in the context`

const conversationalSystemPrompt = `You are an expert conversational assistant. Hold a natural conversation while answering from the provided document context.

Your answers are:
- Natural and conversational
- Grounded in the provided context
- Consistent with the conversation history
- Honest about missing information`

// BuildPrompt assembles the system and user prompts for one query. Output
// is byte-for-byte stable for identical inputs: retrieved chunks are
// rendered in their ranked order with fixed formatting.
func BuildPrompt(query string, retrieved []index.RetrievedChunk, history []models.Turn, conversational bool) (systemPrompt, userPrompt string) {
	if conversational && len(history) > 0 {
		return conversationalSystemPrompt, buildConversationalUserPrompt(query, retrieved, history)
	}
	return ragSystemPrompt, buildRAGUserPrompt(query, retrieved)
}

func contextBlock(retrieved []index.RetrievedChunk) string {
	if len(retrieved) == 0 {
		return "(no relevant documents found)"
	}

	parts := make([]string, 0, len(retrieved))
	for i, chunk := range retrieved {
		filename := chunk.Metadata["filename"]
		if filename == "" {
			filename = "unknown document"
		}
		parts = append(parts, fmt.Sprintf("[Source %d: %s (relevance: %.2f)]\n%s\n", i+1, filename, chunk.Score, chunk.Text))
	}
	return strings.Join(parts, "\n---\n")
}

func buildRAGUserPrompt(query string, retrieved []index.RetrievedChunk) string {
	return fmt.Sprintf(`Context from relevant documents:

%s

---

User question: %s

Please answer the question based only on the context provided above.`, contextBlock(retrieved), query)
}

func buildConversationalUserPrompt(query string, retrieved []index.RetrievedChunk, history []models.Turn) string {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	var historyBuilder strings.Builder
	for _, turn := range history {
		historyBuilder.WriteString(strings.ToUpper(turn.Role))
		historyBuilder.WriteString(": ")
		historyBuilder.WriteString(turn.Content)
		historyBuilder.WriteString("\n")
	}

	return fmt.Sprintf(`Relevant context:
%s

Conversation history:
%s
User: %s

Assistant:`, contextBlock(retrieved), historyBuilder.String(), query)
}
