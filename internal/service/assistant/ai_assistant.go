// Package assistant holds the one-shot prompting exercises that run beside the chat loop.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"chatcli/internal/models"
	"chatcli/internal/service/ai"
)

// Label is a sentiment classification.
type Label string

const (
	LabelPositive Label = "Positive"
	LabelNegative Label = "Negative"
)

// ErrNoLabel is returned when a classification reply names neither label.
var ErrNoLabel = errors.New("reply is not a sentiment label")

const classifyTemperature float32 = 0.1

type assistantService struct {
	gateway  ai.Gateway
	provider ai.Provider
}

// NewAssistantService runs exercises against gateway. provider decides how
// few-shot examples are laid out.
func NewAssistantService(gateway ai.Gateway, provider ai.Provider) (*assistantService, error) {
	if gateway == nil {
		return nil, errors.New("gateway is required")
	}
	return &assistantService{gateway: gateway, provider: provider}, nil
}

// Ask sends a single prompt with no history.
func (as *assistantService) Ask(ctx context.Context, prompt string, opts ai.Options) (*ai.Reply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = DefaultAskPrompt
	}
	reply, err := as.gateway.Send(ctx, []models.Message{models.NewMessage(models.RoleUser, prompt)}, opts)
	if err != nil {
		return nil, fmt.Errorf("ask failed: %w", err)
	}
	return reply, nil
}

// Classification is the outcome of one few-shot call.
type Classification struct {
	Label Label
	Raw   string
	Usage models.Usage
}

// Classify labels review as Positive or Negative from three worked examples.
func (as *assistantService) Classify(ctx context.Context, review string) (*Classification, error) {
	review = strings.TrimSpace(review)
	if review == "" {
		review = DefaultReview
	}
	conv, maxTokens := as.fewShotConversation(review)
	reply, err := as.gateway.Send(ctx, conv, ai.Options{Temperature: lo.ToPtr(classifyTemperature), MaxOutputTokens: maxTokens})
	if err != nil {
		return nil, fmt.Errorf("classify failed: %w", err)
	}
	result := &Classification{Raw: reply.Text, Usage: reply.Usage}
	label, ok := ParseLabel(reply.Text)
	if !ok {
		return result, fmt.Errorf("%w: %q", ErrNoLabel, reply.Text)
	}
	result.Label = label
	return result, nil
}

// Gemini gets one labelled prompt; chat-style providers get user/assistant
// pairs so the answer is a single token.
func (as *assistantService) fewShotConversation(review string) ([]models.Message, int) {
	if as.provider == ai.ProviderGemini {
		var b strings.Builder
		b.WriteString("\n")
		for _, ex := range fewShotExamples {
			fmt.Fprintf(&b, "Review: %s\nLabel: %s\n\n", ex.review, ex.label)
		}
		fmt.Fprintf(&b, "Review: %s\nLabel:\n", review)
		return []models.Message{models.NewMessage(models.RoleUser, b.String())}, 5
	}

	conv := make([]models.Message, 0, 2*len(fewShotExamples)+1)
	for _, ex := range fewShotExamples {
		conv = append(conv,
			models.NewMessage(models.RoleUser, labelRequest(ex.review)),
			models.NewMessage(models.RoleAssistant, string(ex.label)),
		)
	}
	conv = append(conv, models.NewMessage(models.RoleUser, labelRequest(review)))
	return conv, 1
}

func labelRequest(review string) string {
	return fmt.Sprintf("Review: %s Label it as Positive or Negative.", review)
}

// ParseLabel reads the first word of text as a label, ignoring case and punctuation.
func ParseLabel(text string) (Label, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	word := strings.Trim(fields[0], ".,;:!\"'*")
	switch {
	case strings.EqualFold(word, string(LabelPositive)), strings.EqualFold(word, "pos"):
		return LabelPositive, true
	case strings.EqualFold(word, string(LabelNegative)), strings.EqualFold(word, "neg"):
		return LabelNegative, true
	}
	return "", false
}

// Comparison holds the two answers of a zero-shot vs step-by-step run.
type Comparison struct {
	ZeroShot   *ai.Reply
	StepByStep *ai.Reply
}

// Compare asks question plainly with 100 output tokens, then with a
// step-by-step instruction and 200.
func (as *assistantService) Compare(ctx context.Context, question string) (*Comparison, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		question = DefaultQuestion
	}
	zero, err := as.gateway.Send(ctx,
		[]models.Message{models.NewMessage(models.RoleUser, question)},
		ai.Options{Temperature: lo.ToPtr(classifyTemperature), MaxOutputTokens: 100})
	if err != nil {
		return nil, fmt.Errorf("zero-shot call failed: %w", err)
	}
	cot, err := as.gateway.Send(ctx,
		[]models.Message{models.NewMessage(models.RoleUser, stepByStepPrefix+question)},
		ai.Options{Temperature: lo.ToPtr(classifyTemperature), MaxOutputTokens: 200})
	if err != nil {
		return nil, fmt.Errorf("step-by-step call failed: %w", err)
	}
	return &Comparison{ZeroShot: zero, StepByStep: cot}, nil
}
