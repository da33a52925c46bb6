package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIGenerator implements SQLGenerator on an OpenAI-compatible chat
// completion endpoint
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator for the given endpoint. baseURL is
// optional and allows pointing at any OpenAI-compatible server.
func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)
	return &OpenAIGenerator{
		client: &client,
		model:  model,
	}
}

const generateSystemPrompt = `You are an expert SQL database analyst. Generate a precise SQL query for the user's question.

STRICT REQUIREMENTS:
1. ONLY generate SELECT queries (WITH ... SELECT is allowed)
2. Use only tables and columns present in the schema
3. For requests asking for "all" or "everything", DO NOT add LIMIT
4. For aggregations (COUNT, SUM, AVG, GROUP BY), DO NOT add LIMIT
5. Use appropriate JOINs when querying multiple tables
6. Include meaningful column aliases for calculated fields

Return ONLY valid JSON (no markdown):
{
    "sql": "YOUR_SQL_HERE",
    "explanation": "Brief explanation of what the query does",
    "query_type": "aggregation|filtering|join|simple_select|analytical"
}`

// GenerateSQL asks the model for a candidate query. The response SQL is
// returned as-is; validation happens downstream.
func (g *OpenAIGenerator) GenerateSQL(ctx context.Context, question, schemaContext string) (*QueryResponse, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(generateSystemPrompt),
			openai.UserMessage(fmt.Sprintf("%s\n\nUSER QUESTION: %s\n\nJSON:", schemaContext, question)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in model response")
	}

	var out QueryResponse
	text := stripFences(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("model returned malformed JSON: %w", err)
	}
	if strings.TrimSpace(out.SQL) == "" {
		return nil, fmt.Errorf("model returned no sql")
	}

	log.Printf("generated %s query for question %q", out.QueryType, question)
	return &out, nil
}

const suggestSystemPrompt = `Based on the database schema, suggest 3 insightful questions users might ask.

RULES:
- Questions must be under 15 words
- Focus on business insights and analytics
- Must be answerable with available data
- NO explanations or parentheses

Return ONLY a JSON array:
["Question 1?", "Question 2?", "Question 3?"]`

// Suggestions asks the model for example questions. Falls back to static
// suggestions when the model response is unusable.
func (g *OpenAIGenerator) Suggestions(ctx context.Context, schemaContext string) ([]string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(suggestSystemPrompt),
			openai.UserMessage(schemaContext),
		},
	})
	if err != nil {
		log.Printf("suggestion request failed, using defaults: %v", err)
		return DefaultSuggestions(), nil
	}
	if len(resp.Choices) == 0 {
		return DefaultSuggestions(), nil
	}

	text := stripFences(resp.Choices[0].Message.Content)
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		text = text[start : end+1]
	}

	var suggestions []string
	if err := json.Unmarshal([]byte(text), &suggestions); err != nil || len(suggestions) == 0 {
		return DefaultSuggestions(), nil
	}

	out := make([]string, 0, 3)
	for _, s := range suggestions {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == 3 {
			break
		}
	}
	if len(out) == 0 {
		return DefaultSuggestions(), nil
	}
	return out, nil
}

// DefaultSuggestions are served when no generator is configured or the
// model response is unusable
func DefaultSuggestions() []string {
	return []string{
		"Show me the first 10 rows of data",
		"What are the total record counts per table?",
		"Show summary statistics for numeric columns",
	}
}

// stripFences removes markdown code fences models wrap JSON in despite
// instructions
func stripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
