// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API. It adapts HybridFlow's normalized Request/Response
// structures into the SDK's message format and back, and classifies SDK
// errors into the uniform unavailable / invalid_request shape the router
// relies on for failover.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/hybridflow/model"
)

const providerName = "openai"

// Options configure the OpenAI model adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic
// model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Chat implements model.Model.
func (m *Model) Chat(ctx context.Context, req model.Request) (model.Response, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return model.Response{}, model.Unavailable(providerName, fmt.Errorf("missing OPENAI_API_KEY"))
	}
	if len(req.Messages) == 0 {
		return model.Response{}, model.InvalidRequest(providerName, fmt.Errorf("no messages provided"))
	}

	modelID := m.opts.Model
	if req.ModelHint != "" {
		modelID = req.ModelHint
	}

	params := openai.ChatCompletionNewParams{
		Model:               modelID,
		Messages:            buildMessages(req.Messages),
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.Response{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return model.Response{}, model.Unavailable(providerName, fmt.Errorf("empty choices in completion"))
	}

	return model.Response{
		Content:  strings.TrimSpace(resp.Choices[0].Message.Content),
		Provider: providerName,
		Model:    modelID,
	}, nil
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: providerName}
}

func buildMessages(msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// classify maps SDK errors onto the uniform provider error shape. API
// errors carry a status code; anything else (network, client init) is
// treated as unavailable.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if model.ClassifyStatus(apiErr.StatusCode) == model.KindInvalidRequest {
			return model.InvalidRequest(providerName, err)
		}
		return model.Unavailable(providerName, err)
	}
	return model.Unavailable(providerName, err)
}
