package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"chatcli/internal/models"
	"chatcli/internal/service/ai"
)

type call struct {
	conv []models.Message
	opts ai.Options
}

type recordingGateway struct {
	replies []string
	err     error
	calls   []call
}

func (g *recordingGateway) Send(_ context.Context, conv []models.Message, opts ai.Options) (*ai.Reply, error) {
	g.calls = append(g.calls, call{conv: conv, opts: opts})
	if g.err != nil {
		return nil, g.err
	}
	text := "ok"
	if i := len(g.calls) - 1; i < len(g.replies) {
		text = g.replies[i]
	}
	return &ai.Reply{Text: text}, nil
}

func TestNewAssistantServiceRequiresGateway(t *testing.T) {
	if _, err := NewAssistantService(nil, ai.ProviderOpenAI); err == nil {
		t.Fatalf("expected error without gateway")
	}
}

func TestAskUsesDefaultPrompt(t *testing.T) {
	gw := &recordingGateway{replies: []string{"one sentence"}}
	as, _ := NewAssistantService(gw, ai.ProviderGemini)

	reply, err := as.Ask(context.Background(), "  ", ai.Options{})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if reply.Text != "one sentence" {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	if len(gw.calls) != 1 || gw.calls[0].conv[0].Content != DefaultAskPrompt {
		t.Fatalf("default prompt not sent: %+v", gw.calls)
	}
}

func TestClassifyChatProviderUsesMessagePairs(t *testing.T) {
	gw := &recordingGateway{replies: []string{"Negative"}}
	as, _ := NewAssistantService(gw, ai.ProviderOpenAI)

	got, err := as.Classify(context.Background(), "")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Label != LabelNegative {
		t.Fatalf("expected Negative, got %q", got.Label)
	}
	c := gw.calls[0]
	if len(c.conv) != 7 {
		t.Fatalf("expected 3 example pairs plus the query, got %d messages", len(c.conv))
	}
	if c.conv[1].Role != models.RoleAssistant || c.conv[1].Content != "Positive" {
		t.Fatalf("unexpected example reply: %+v", c.conv[1])
	}
	if !strings.Contains(c.conv[6].Content, DefaultReview) {
		t.Fatalf("test review missing from final message: %q", c.conv[6].Content)
	}
	if c.opts.MaxOutputTokens != 1 || c.opts.Temperature == nil || *c.opts.Temperature != 0.1 {
		t.Fatalf("unexpected options: %+v", c.opts)
	}
}

func TestClassifyGeminiUsesLabelledPrompt(t *testing.T) {
	gw := &recordingGateway{replies: []string{" positive.\n"}}
	as, _ := NewAssistantService(gw, ai.ProviderGemini)

	got, err := as.Classify(context.Background(), "Great fun.")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.Label != LabelPositive {
		t.Fatalf("expected Positive, got %q", got.Label)
	}
	c := gw.calls[0]
	if len(c.conv) != 1 || c.conv[0].Role != models.RoleUser {
		t.Fatalf("expected a single user prompt, got %+v", c.conv)
	}
	if !strings.HasSuffix(c.conv[0].Content, "Review: Great fun.\nLabel:\n") {
		t.Fatalf("prompt does not end with the query: %q", c.conv[0].Content)
	}
	if strings.Count(c.conv[0].Content, "Label: ") != 3 {
		t.Fatalf("expected three labelled examples: %q", c.conv[0].Content)
	}
	if c.opts.MaxOutputTokens != 5 {
		t.Fatalf("expected 5 output tokens, got %d", c.opts.MaxOutputTokens)
	}
}

func TestClassifyUnlabelledReply(t *testing.T) {
	gw := &recordingGateway{replies: []string{"Mixed"}}
	as, _ := NewAssistantService(gw, ai.ProviderOpenAI)

	got, err := as.Classify(context.Background(), "meh")
	if !errors.Is(err, ErrNoLabel) {
		t.Fatalf("expected ErrNoLabel, got %v", err)
	}
	if got == nil || got.Raw != "Mixed" {
		t.Fatalf("raw reply should be returned: %+v", got)
	}
}

func TestCompareSendsBothVariants(t *testing.T) {
	gw := &recordingGateway{replies: []string{"$22", "4*3 + 5*2 = 22"}}
	as, _ := NewAssistantService(gw, ai.ProviderOpenAI)

	got, err := as.Compare(context.Background(), "")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if got.ZeroShot.Text != "$22" || got.StepByStep.Text != "4*3 + 5*2 = 22" {
		t.Fatalf("unexpected comparison: %+v", got)
	}
	if len(gw.calls) != 2 {
		t.Fatalf("expected two calls, got %d", len(gw.calls))
	}
	if gw.calls[0].conv[0].Content != DefaultQuestion || gw.calls[0].opts.MaxOutputTokens != 100 {
		t.Fatalf("unexpected zero-shot call: %+v", gw.calls[0])
	}
	if !strings.HasPrefix(gw.calls[1].conv[0].Content, "Explain your reasoning step-by-step") || gw.calls[1].opts.MaxOutputTokens != 200 {
		t.Fatalf("unexpected step-by-step call: %+v", gw.calls[1])
	}
}

func TestCompareStopsOnError(t *testing.T) {
	gw := &recordingGateway{err: errors.New("boom")}
	as, _ := NewAssistantService(gw, ai.ProviderOpenAI)
	if _, err := as.Compare(context.Background(), "q"); err == nil {
		t.Fatalf("expected error")
	}
	if len(gw.calls) != 1 {
		t.Fatalf("second call should not run, got %d calls", len(gw.calls))
	}
}

func TestParseLabel(t *testing.T) {
	tests := map[string]Label{
		"Positive":             LabelPositive,
		"negative.":            LabelNegative,
		"**Negative** because": LabelNegative,
		"Pos":                  LabelPositive,
	}
	for in, want := range tests {
		got, ok := ParseLabel(in)
		if !ok || got != want {
			t.Fatalf("ParseLabel(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseLabel(""); ok {
		t.Fatalf("empty text should not parse")
	}
}
