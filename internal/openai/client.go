package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/cloo-solutions/vocabtool/internal/domain"
	"github.com/cloo-solutions/vocabtool/internal/oracle"
)

const (
	// DefaultModel is the chat model used for evaluations
	DefaultModel = openai.GPT4oMini
)

var (
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrNoChoices is returned when the API answers without a message
	ErrNoChoices = errors.New("no completion choices returned")
)

// ChatAPI defines the interface for chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client evaluates search results with an OpenAI chat model
type Client struct {
	api    ChatAPI
	model  string
	logger *slog.Logger
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		api:    openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: slog.Default().With("component", "openai-oracle"),
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

var verdictSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"candidateCodings": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"system":  {Type: jsonschema.String},
					"code":    {Type: jsonschema.String},
					"display": {Type: jsonschema.String},
				},
				Required: []string{"system", "code", "display"},
			},
		},
		"grade":     {Type: jsonschema.String, Enum: []string{"A", "B", "C"}},
		"rationale": {Type: jsonschema.String},
		"nextQuery": {
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"system": {Type: jsonschema.String},
				"query":  {Type: jsonschema.String},
			},
		},
	},
	Required: []string{"candidateCodings", "grade", "rationale"},
}

// Evaluate sends one evaluation request and validates the verdict.
func (c *Client) Evaluate(ctx context.Context, in oracle.Input) (*domain.Verdict, error) {
	userMsg, err := oracle.UserMessage(in)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: oracle.Instruction},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "verdict",
				Schema: &verdictSchema,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeOracleFailure,
			"suggestion oracle returned an invalid verdict", ErrNoChoices)
	}

	verdict, err := oracle.ParseVerdict([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		c.logger.Warn("rejected verdict", "model", c.model, "error", err)
		return nil, err
	}
	return verdict, nil
}
