package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"chatcli/internal/models"
)

// Ledger is an append-only audit trail of completed turns. It is never read
// back into a conversation.
type Ledger struct {
	db *sql.DB
}

// Summary aggregates the turns of one session.
type Summary struct {
	SessionID        string          `json:"session_id"`
	Turns            int             `json:"turns"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	Cost             decimal.Decimal `json:"cost"`
	UnpricedTurns    int             `json:"unpriced_turns"`
}

func NewLedger(db *sql.DB) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("ledger requires a database")
	}
	return &Ledger{db: db}, nil
}

// RecordTurn satisfies the session's recorder.
func (l *Ledger) RecordTurn(ctx context.Context, turn models.Turn) error {
	_, err := l.Append(ctx, turn)
	return err
}

// Append inserts turn and returns its row id.
func (l *Ledger) Append(ctx context.Context, turn models.Turn) (int64, error) {
	if turn.SessionID == "" {
		return 0, errors.New("session_id is required")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO turns (session_id, model, prompt, reply, prompt_tokens, completion_tokens, estimated, cost, priced, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.SessionID, turn.Model, turn.Prompt, turn.Reply,
		turn.Usage.PromptTokens, turn.Usage.CompletionTokens, turn.Usage.Estimated,
		turn.Cost.String(), turn.Priced, turn.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("record turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("turn id: %w", err)
	}
	return id, nil
}

// ListTurns returns the turns of a session in insertion order.
func (l *Ledger) ListTurns(ctx context.Context, sessionID string) ([]models.Turn, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, session_id, model, prompt, reply, prompt_tokens, completion_tokens, estimated, cost, priced, created_at
		FROM turns WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var (
			t       models.Turn
			costStr string
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Model, &t.Prompt, &t.Reply,
			&t.Usage.PromptTokens, &t.Usage.CompletionTokens, &t.Usage.Estimated,
			&costStr, &t.Priced, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Cost, err = decimal.NewFromString(costStr)
		if err != nil {
			return nil, fmt.Errorf("parse cost of turn %d: %w", t.ID, err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Summary totals a session's turns. Costs are summed in decimal.
func (l *Ledger) Summary(ctx context.Context, sessionID string) (Summary, error) {
	turns, err := l.ListTurns(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{SessionID: sessionID, Cost: decimal.Zero}
	for _, t := range turns {
		sum.Turns++
		sum.PromptTokens += t.Usage.PromptTokens
		sum.CompletionTokens += t.Usage.CompletionTokens
		if t.Priced {
			sum.Cost = sum.Cost.Add(t.Cost)
		} else {
			sum.UnpricedTurns++
		}
	}
	return sum, nil
}
