// Package langchain adapts OpenAI-compatible local model servers to the
// oracle contract through langchaingo.
package langchain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/oracle"
)

// Generator is the part of llms.Model the oracle uses.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Oracle evaluates search results with a chat model.
type Oracle struct {
	model  Generator
	name   string
	logger *slog.Logger
}

// New connects to an OpenAI-compatible server at host. Local servers usually
// need no token; "none" is sent in that case.
func New(host, model, token string) (*Oracle, error) {
	if token == "" {
		token = "none"
	}
	client, err := lcopenai.New(
		lcopenai.WithBaseURL(host),
		lcopenai.WithToken(token),
		lcopenai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}
	return NewWithModel(client, model), nil
}

// NewWithModel wraps an existing model.
func NewWithModel(model Generator, name string) *Oracle {
	return &Oracle{
		model:  model,
		name:   name,
		logger: slog.Default().With("component", "langchain-oracle"),
	}
}

// Evaluate sends the fixed instruction and the serialized input in JSON mode.
func (o *Oracle) Evaluate(ctx context.Context, in oracle.Input) (*domain.Verdict, error) {
	userMsg, err := oracle.UserMessage(in)
	if err != nil {
		return nil, err
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(oracle.Instruction)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(userMsg)},
		},
	}

	resp, err := o.model.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeOracleFailure, "suggestion oracle returned an invalid verdict")
	}

	verdict, err := oracle.ParseVerdict([]byte(resp.Choices[0].Content))
	if err != nil {
		o.logger.Warn("rejected verdict", "model", o.name, "error", err)
		return nil, err
	}
	o.logger.Debug("verdict", "model", o.name, "grade", verdict.Grade, "candidates", len(verdict.CandidateCodings))
	return verdict, nil
}
