package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"virtual-patient/pkg"
)

// DefaultChatModel is used when no model is configured.
const DefaultChatModel = "gpt-4o-mini"

// ErrEmptyCompletion is returned when the API answers without any choice.
var ErrEmptyCompletion = errors.New("llm: completion returned no choices")

// Params bounds a single completion request.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float32
}

// Client is the contract the simulated patient needs from a language
// model.  Chat accepts the full message history: the system turn first,
// then every prior turn in order.
type Client interface {
	Chat(ctx context.Context, messages []pkg.Message, params Params) (string, error)
}

// Config configures an OpenAIClient.  BaseURL and Timeout are optional.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient calls the OpenAI chat completion API.
type OpenAIClient struct {
	client    *openai.Client
	chatModel string
}

// NewOpenAIClient constructs an OpenAI-backed client.  An empty model falls
// back to DefaultChatModel.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	chatModel := cfg.Model
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(oc),
		chatModel: chatModel,
	}
}

// Model returns the model used when a request does not name one.
func (c *OpenAIClient) Model() string { return c.chatModel }

// Chat sends the message history to the chat completion API and returns
// the content of the first choice.
func (c *OpenAIClient) Chat(ctx context.Context, messages []pkg.Message, params Params) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: roleFor(m.Role), Content: m.Content})
	}

	model := params.Model
	if model == "" {
		model = c.chatModel
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    oaMsgs,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func roleFor(r pkg.MessageRole) string {
	switch r {
	case pkg.RoleSystem:
		return openai.ChatMessageRoleSystem
	case pkg.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		// coerce anything unknown to user
		return openai.ChatMessageRoleUser
	}
}
