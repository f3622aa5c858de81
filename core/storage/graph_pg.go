package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/botfactory/chainbot/core/chain"
)

// PGGraphStore reads dashboard-owned chain configuration from Postgres.
// The engine never writes these tables.
type PGGraphStore struct {
	db *sqlx.DB
}

// NewPGGraphStore wraps an open database handle.
func NewPGGraphStore(db *sqlx.DB) *PGGraphStore {
	return &PGGraphStore{db: db}
}

type chainRow struct {
	ID          int64         `db:"id"`
	BotID       int64         `db:"bot_id"`
	Name        string        `db:"name"`
	FirstStepID sql.NullInt64 `db:"first_step_id"`
}

type stepRow struct {
	ID         int64         `db:"id"`
	ChainID    int64         `db:"chain_id"`
	Name       string        `db:"name"`
	Message    string        `db:"message"`
	NextStepID sql.NullInt64 `db:"next_step_id"`
	TextInput  bool          `db:"text_input"`
}

type buttonRow struct {
	ID         int64         `db:"id"`
	StepID     int64         `db:"step_id"`
	Text       string        `db:"text"`
	CallbackID string        `db:"callback_id"`
	NextStepID sql.NullInt64 `db:"next_step_id"`
}

func (r chainRow) toChain() chain.Chain {
	return chain.Chain{
		ID:          r.ID,
		BotID:       r.BotID,
		Name:        r.Name,
		FirstStepID: r.FirstStepID.Int64,
	}
}

func (r stepRow) toStep() *chain.Step {
	return &chain.Step{
		ID:         r.ID,
		ChainID:    r.ChainID,
		Name:       r.Name,
		Message:    r.Message,
		NextStepID: r.NextStepID.Int64,
		TextInput:  r.TextInput,
	}
}

func (r buttonRow) toButton() chain.Button {
	return chain.Button{
		ID:         r.ID,
		StepID:     r.StepID,
		Text:       r.Text,
		CallbackID: r.CallbackID,
		NextStepID: r.NextStepID.Int64,
	}
}

// ChainRoot resolves the first step of a chain, buttons included.
func (p *PGGraphStore) ChainRoot(ctx context.Context, chainID int64) (*chain.Step, error) {
	var cr chainRow
	err := p.db.GetContext(ctx, &cr,
		`SELECT id, bot_id, name, first_step_id FROM chains WHERE id = $1`, chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chain.ErrChainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: select chain %d: %w", chainID, err)
	}
	if !cr.FirstStepID.Valid {
		return nil, chain.ErrStepNotFound
	}
	return p.StepByID(ctx, cr.FirstStepID.Int64)
}

// StepByID loads a single step with its buttons in configured order.
func (p *PGGraphStore) StepByID(ctx context.Context, stepID int64) (*chain.Step, error) {
	var sr stepRow
	err := p.db.GetContext(ctx, &sr,
		`SELECT id, chain_id, name, message, next_step_id, text_input
		   FROM chain_steps WHERE id = $1`, stepID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chain.ErrStepNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: select step %d: %w", stepID, err)
	}

	step := sr.toStep()
	var brs []buttonRow
	err = p.db.SelectContext(ctx, &brs,
		`SELECT id, step_id, text, callback_id, next_step_id
		   FROM chain_buttons WHERE step_id = $1 ORDER BY id`, stepID)
	if err != nil {
		return nil, fmt.Errorf("storage: select buttons for step %d: %w", stepID, err)
	}
	for _, br := range brs {
		step.Buttons = append(step.Buttons, br.toButton())
	}
	return step, nil
}

// Graph loads a chain's whole step table in three queries.
func (p *PGGraphStore) Graph(ctx context.Context, chainID int64) (*chain.Graph, error) {
	var cr chainRow
	err := p.db.GetContext(ctx, &cr,
		`SELECT id, bot_id, name, first_step_id FROM chains WHERE id = $1`, chainID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chain.ErrChainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: select chain %d: %w", chainID, err)
	}

	var srs []stepRow
	err = p.db.SelectContext(ctx, &srs,
		`SELECT id, chain_id, name, message, next_step_id, text_input
		   FROM chain_steps WHERE chain_id = $1 ORDER BY id`, chainID)
	if err != nil {
		return nil, fmt.Errorf("storage: select steps for chain %d: %w", chainID, err)
	}

	steps := make([]*chain.Step, 0, len(srs))
	byID := make(map[int64]*chain.Step, len(srs))
	ids := make([]int64, 0, len(srs))
	for _, sr := range srs {
		s := sr.toStep()
		steps = append(steps, s)
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}

	if len(ids) > 0 {
		query, args, err := sqlx.In(
			`SELECT id, step_id, text, callback_id, next_step_id
			   FROM chain_buttons WHERE step_id IN (?) ORDER BY id`, ids)
		if err != nil {
			return nil, fmt.Errorf("storage: build buttons query: %w", err)
		}
		var brs []buttonRow
		err = p.db.SelectContext(ctx, &brs, p.db.Rebind(query), args...)
		if err != nil {
			return nil, fmt.Errorf("storage: select buttons for chain %d: %w", chainID, err)
		}
		for _, br := range brs {
			if s, ok := byID[br.StepID]; ok {
				s.Buttons = append(s.Buttons, br.toButton())
			}
		}
	}

	return chain.NewGraph(cr.toChain(), steps), nil
}
