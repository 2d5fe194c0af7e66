package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/privara/docsearch/internal/domain"
)

const answerSystemPrompt = `You are a helpful assistant with access to a knowledge base.
Your task is to answer questions based on the provided context documents.
- Always cite your sources using [doc_id] format
- If the answer is not in the context, say so
- Be concise and accurate
- Respect document sensitivity - if a document is marked sensitive, treat the information carefully`

// Generator produces answers via the OpenAI-compatible chat completions API.
type Generator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewGenerator creates a chat-completion answer generator.
func NewGenerator(cfg *Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4TurboPreview
	}

	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: cfg.Logger,
	}
}

// GenerateAnswer implements domain.AnswerGenerator.
func (g *Generator) GenerateAnswer(ctx context.Context, query string, docs []domain.Document, history []domain.ChatMessage) (domain.AnswerResult, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(query, docs, history)},
		},
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	if err != nil {
		return domain.AnswerResult{}, fmt.Errorf("chat completion: %v: %w", err, domain.ErrLLMProviderError)
	}
	if len(resp.Choices) == 0 {
		return domain.AnswerResult{}, fmt.Errorf("chat completion returned no choices: %w", domain.ErrLLMProviderError)
	}

	answer := resp.Choices[0].Message.Content
	return domain.AnswerResult{
		Answer:     answer,
		Confidence: 0.8,
		Citations:  ExtractCitations(answer, docs),
	}, nil
}

// buildUserPrompt assembles the RAG prompt: document context, the last few
// conversation turns, then the question.
func buildUserPrompt(query string, docs []domain.Document, history []domain.ChatMessage) string {
	var b strings.Builder

	b.WriteString("Context from knowledge base:\n")
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s] %s\n%s", doc.ID, doc.Title, doc.Content)
	}
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		turns := history
		if len(turns) > 5 {
			turns = turns[len(turns)-5:]
		}
		for _, msg := range turns {
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(msg.Role), msg.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s\n\n", query)
	b.WriteString("Please provide a comprehensive answer based on the context provided. Include citations using [doc_id] format.")
	return b.String()
}

// ExtractCitations returns the IDs of context documents the answer mentions.
func ExtractCitations(answer string, docs []domain.Document) []string {
	var citations []string
	for _, doc := range docs {
		if strings.Contains(answer, "["+doc.ID+"]") || strings.Contains(answer, doc.ID) {
			citations = append(citations, doc.ID)
		}
	}
	return citations
}
