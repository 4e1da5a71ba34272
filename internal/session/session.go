// Package session runs the interactive chat loop: one conversation, one turn at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"chatcli/internal/cost"
	"chatcli/internal/history"
	"chatcli/internal/models"
	"chatcli/internal/service/ai"
	"chatcli/internal/tokens"
)

const (
	Prompt   = "You: "
	Farewell = "Goodbye!"
)

var exitWords = []string{"quit", "exit", "/quit"}

var (
	ErrEmptyInput      = errors.New("input is empty")
	ErrExited          = errors.New("session has exited")
	ErrContextOverflow = errors.New("message does not fit the context budget")
)

// State is where the loop is in its turn cycle.
type State int

const (
	AwaitingInput State = iota
	Sending
	RollingBack
	Exited
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "awaiting_input"
	case Sending:
		return "sending"
	case RollingBack:
		return "rolling_back"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsExitWord reports whether line ends the session.
func IsExitWord(line string) bool {
	return lo.Contains(exitWords, strings.ToLower(strings.TrimSpace(line)))
}

// Recorder persists completed turns. Failures are reported but never fail the turn.
type Recorder interface {
	RecordTurn(ctx context.Context, turn models.Turn) error
}

// Config holds the per-session settings.
type Config struct {
	Model   string
	Options ai.Options
	Budget  history.Budget
	Pricing cost.Table
	// SystemPrompt and ContextDocument, when set, seed the conversation as
	// system messages. They are evicted like any other message.
	SystemPrompt    string
	ContextDocument string
}

// TurnResult describes one successful turn.
type TurnResult struct {
	Reply         string          `json:"reply"`
	Usage         models.Usage    `json:"usage"`
	ContextTokens int             `json:"context_tokens"`
	Cost          decimal.Decimal `json:"cost"`
	Priced        bool            `json:"priced"`
	SessionCost   decimal.Decimal `json:"session_cost"`
}

// Stats summarises the session so far.
type Stats struct {
	ID               string          `json:"id"`
	Model            string          `json:"model"`
	Turns            int             `json:"turns"`
	Messages         int             `json:"messages"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	Cost             decimal.Decimal `json:"cost"`
	State            string          `json:"state"`
}

// Session owns the conversation and the running cost. Turns are serialised.
type Session struct {
	mu       sync.Mutex
	id       string
	gateway  ai.Gateway
	counter  tokens.Counter
	cfg      Config
	out      io.Writer
	format   Formatter
	recorder Recorder
	now      func() time.Time

	state            State
	history          []models.Message
	total            decimal.Decimal
	turns            int
	promptTokens     int
	completionTokens int
}

// Option customises a Session.
type Option func(*Session)

// WithOutput sets where replies and status lines go. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) { s.out = w }
}

// WithFormatter sets how replies and status lines are rendered.
func WithFormatter(f Formatter) Option {
	return func(s *Session) { s.format = f }
}

// WithRecorder records every completed turn.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// New starts a session in AwaitingInput with the seeded system messages.
func New(gateway ai.Gateway, counter tokens.Counter, cfg Config, opts ...Option) *Session {
	if cfg.Pricing == nil {
		cfg.Pricing = cost.DefaultTable
	}
	if cfg.Budget == (history.Budget{}) {
		cfg.Budget = history.DefaultBudget
	}
	s := &Session{
		id:      uuid.NewString(),
		gateway: gateway,
		counter: counter,
		cfg:     cfg,
		out:     os.Stdout,
		format:  PlainFormatter{},
		now:     time.Now,
		state:   AwaitingInput,
		total:   decimal.Zero,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.SystemPrompt != "" {
		s.history = append(s.history, models.NewMessage(models.RoleSystem, cfg.SystemPrompt))
	}
	if cfg.ContextDocument != "" {
		s.history = append(s.history, models.NewMessage(models.RoleSystem,
			"Use the following document as context when answering:\n\n"+cfg.ContextDocument))
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Model() string { return s.cfg.Model }

// State returns the current loop state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation.
func (s *Session) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Clone(s.history)
}

// Total returns the accumulated session cost.
func (s *Session) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ID:               s.id,
		Model:            s.cfg.Model,
		Turns:            s.turns,
		Messages:         len(s.history),
		PromptTokens:     s.promptTokens,
		CompletionTokens: s.completionTokens,
		Cost:             s.total,
		State:            s.state.String(),
	}
}

// Logf prints a status line. It is safe to call from the gateway while a turn
// is in flight, which is how retry notices reach the user.
func (s *Session) Logf(format string, args ...any) {
	s.format.Status(s.out, fmt.Sprintf(format, args...))
}

// Close moves the session to Exited. Later sends fail with ErrExited.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = Exited
	s.mu.Unlock()
}

// Send runs one turn. Truncation works on a copy of the history, which is
// committed only once the provider replies; on any failure the history is
// exactly what it was before the turn.
func (s *Session) Send(ctx context.Context, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Exited {
		return nil, ErrExited
	}

	s.state = Sending
	prev := s.history
	working := append(models.Clone(prev), models.NewMessage(models.RoleUser, text))
	working = history.Truncate(working, s.cfg.Model, s.cfg.Budget, s.counter, s.logEviction)
	if len(working) == 0 {
		s.rollback(prev)
		err := fmt.Errorf("%w: ~%d token budget", ErrContextOverflow, s.cfg.Budget.MaxContextTokens-s.cfg.Budget.ReservedOutputTokens)
		s.format.Error(s.out, fmt.Sprintf("[context] %v", err))
		return nil, err
	}

	contextTokens := s.counter.Count(working, s.cfg.Model)
	s.format.Status(s.out, fmt.Sprintf("[context] ~%d tokens in %d messages", contextTokens, len(working)))
	debugLog("session %s: sending %d messages to %s", s.id, len(working), s.cfg.Model)

	reply, err := s.gateway.Send(ctx, models.Clone(working), s.cfg.Options)
	if err != nil {
		s.rollback(prev)
		s.format.Error(s.out, fmt.Sprintf("Error calling LLM API: %v", err))
		return nil, err
	}

	s.history = append(working, models.NewMessage(models.RoleAssistant, reply.Text))
	s.turns++
	s.promptTokens += reply.Usage.PromptTokens
	s.completionTokens += reply.Usage.CompletionTokens

	result := &TurnResult{
		Reply:         reply.Text,
		Usage:         reply.Usage,
		ContextTokens: contextTokens,
	}
	s.format.Assistant(s.out, reply.Text)
	s.format.Status(s.out, usageLine(reply.Usage))

	turnCost, costErr := s.cfg.Pricing.Estimate(s.cfg.Model, reply.Usage.PromptTokens, reply.Usage.CompletionTokens)
	if costErr != nil {
		s.format.Status(s.out, fmt.Sprintf("[cost] unavailable: %v", costErr))
	} else {
		s.total = s.total.Add(turnCost)
		result.Cost = turnCost
		result.Priced = true
		s.format.Status(s.out, fmt.Sprintf("[cost] turn $%s | session $%s", formatUSD(turnCost), formatUSD(s.total)))
	}
	result.SessionCost = s.total
	s.state = AwaitingInput

	if s.recorder != nil {
		turn := models.Turn{
			SessionID: s.id,
			Model:     s.cfg.Model,
			Prompt:    text,
			Reply:     reply.Text,
			Usage:     reply.Usage,
			Cost:      result.Cost,
			Priced:    result.Priced,
			CreatedAt: s.now().UTC(),
		}
		if err := s.recorder.RecordTurn(ctx, turn); err != nil {
			s.format.Error(s.out, fmt.Sprintf("[ledger] record turn failed: %v", err))
		}
	}
	return result, nil
}

// rollback restores the history held before the failed turn.
func (s *Session) rollback(prev []models.Message) {
	s.state = RollingBack
	s.history = prev
	debugLog("session %s: rolled back, %d messages remain", s.id, len(s.history))
	s.state = AwaitingInput
}

func (s *Session) logEviction(ev history.Eviction) {
	roles := lo.Map(ev.Removed, func(m models.Message, _ int) string { return string(m.Role) })
	s.format.Status(s.out, fmt.Sprintf("[context] evicted %s (~%d tokens before), %d messages remain",
		strings.Join(roles, "+"), ev.TokensBefore, ev.Remaining))
}

// Run reads lines until an exit word, EOF or ctx cancellation. Turn failures
// are printed and the loop continues.
func (s *Session) Run(ctx context.Context, in LineReader) error {
	for {
		if err := ctx.Err(); err != nil {
			s.Close()
			return err
		}
		line, err := in.ReadLine(Prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.exit()
				return nil
			}
			s.Close()
			return fmt.Errorf("read input: %w", err)
		}
		if IsExitWord(line) {
			s.exit()
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := s.Send(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				s.Close()
				return err
			}
			debugLog("session %s: turn failed: %v", s.id, err)
		}
	}
}

func (s *Session) exit() {
	s.format.Status(s.out, Farewell)
	s.Close()
}

func usageLine(u models.Usage) string {
	line := fmt.Sprintf("[usage] prompt=%d completion=%d total=%d", u.PromptTokens, u.CompletionTokens, u.Total())
	if u.Estimated {
		line += " (estimated)"
	}
	return line
}

func formatUSD(d decimal.Decimal) string {
	return d.StringFixed(6)
}
