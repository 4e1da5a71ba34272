// Package ai sends conversations to hosted LLM providers through eino chat models.
package ai

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"

	"chatcli/internal/models"
	"chatcli/internal/tokens"
)

// Options are the per-call generation settings.
// A nil Temperature leaves the provider default in place; zero is sent as is.
type Options struct {
	Temperature     *float32
	MaxOutputTokens int
}

// Reply is the provider's answer to one call.
type Reply struct {
	Text  string
	Usage models.Usage
}

// Gateway is the single capability the chat core needs from a provider.
type Gateway interface {
	Send(ctx context.Context, conv []models.Message, opts Options) (*Reply, error)
}

// ChatGateway adapts an eino chat model to Gateway.
type ChatGateway struct {
	chatModel model.BaseChatModel
	modelName string
	counter   tokens.Counter
}

// NewChatGateway wraps chatModel. counter fills in usage when the provider
// reports none; it may be nil, in which case missing usage stays zero.
func NewChatGateway(chatModel model.BaseChatModel, modelName string, counter tokens.Counter) *ChatGateway {
	return &ChatGateway{
		chatModel: chatModel,
		modelName: modelName,
		counter:   counter,
	}
}

// Model returns the model identifier requests are sent to.
func (g *ChatGateway) Model() string {
	return g.modelName
}

// Send issues one non-streaming generate call.
func (g *ChatGateway) Send(ctx context.Context, conv []models.Message, opts Options) (*Reply, error) {
	if len(conv) == 0 {
		return nil, &GatewayError{Kind: KindBadRequest, Err: errors.New("conversation is empty")}
	}
	var callOpts []model.Option
	if opts.Temperature != nil {
		callOpts = append(callOpts, model.WithTemperature(*opts.Temperature))
	}
	if opts.MaxOutputTokens > 0 {
		callOpts = append(callOpts, model.WithMaxTokens(opts.MaxOutputTokens))
	}

	resp, err := g.chatModel.Generate(ctx, convertMessages(conv), callOpts...)
	if err != nil {
		return nil, Classify(err)
	}
	if resp == nil {
		return nil, &GatewayError{Kind: KindOther, Err: errors.New("provider returned no message")}
	}
	return &Reply{
		Text:  resp.Content,
		Usage: g.usageOf(resp, conv),
	}, nil
}

func (g *ChatGateway) usageOf(resp *schema.Message, conv []models.Message) models.Usage {
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		u := resp.ResponseMeta.Usage
		if u.PromptTokens > 0 || u.CompletionTokens > 0 {
			return models.Usage{
				PromptTokens:     u.PromptTokens,
				CompletionTokens: u.CompletionTokens,
			}
		}
	}
	if g.counter == nil {
		return models.Usage{}
	}
	reply := []models.Message{models.NewMessage(models.RoleAssistant, resp.Content)}
	return models.Usage{
		PromptTokens:     g.counter.Count(conv, g.modelName),
		CompletionTokens: g.counter.Count(reply, g.modelName),
		Estimated:        true,
	}
}

func convertMessages(conv []models.Message) []*schema.Message {
	return lo.Map(conv, func(msg models.Message, _ int) *schema.Message {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		return &schema.Message{
			Role:    role,
			Content: msg.Content,
		}
	})
}
