package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/botfactory/chainbot/core/chain"
)

// PGSessionStore persists sessions in Postgres, one row per (bot, user).
// Position and answers live on the same row, so a transition and its
// recorded answer are two writes to the same place, not two tables.
type PGSessionStore struct {
	db *sqlx.DB
}

// NewPGSessionStore wraps an open database handle.
func NewPGSessionStore(db *sqlx.DB) *PGSessionStore {
	return &PGSessionStore{db: db}
}

type sessionRow struct {
	BotID     int64           `db:"bot_id"`
	UserID    int64           `db:"user_id"`
	ChainID   sql.NullInt64   `db:"chain_id"`
	StepID    sql.NullInt64   `db:"step_id"`
	Answers   json.RawMessage `db:"answers"`
	Username  string          `db:"username"`
	FirstName string          `db:"first_name"`
	LastName  string          `db:"last_name"`
	PhotoURL  string          `db:"photo_url"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r sessionRow) toSession() (*chain.Session, error) {
	s := &chain.Session{
		BotID:     r.BotID,
		UserID:    r.UserID,
		ChainID:   r.ChainID.Int64,
		StepID:    r.StepID.Int64,
		UpdatedAt: r.UpdatedAt,
		User: chain.User{
			ID:        r.UserID,
			Username:  r.Username,
			FirstName: r.FirstName,
			LastName:  r.LastName,
			PhotoURL:  r.PhotoURL,
		},
	}
	if len(r.Answers) > 0 {
		if err := json.Unmarshal(r.Answers, &s.Answers); err != nil {
			return nil, fmt.Errorf("storage: decode answers for user %d: %w", r.UserID, err)
		}
	}
	return s, nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// Get returns the user's session or chain.ErrSessionNotFound.
func (p *PGSessionStore) Get(ctx context.Context, botID, userID int64) (*chain.Session, error) {
	var r sessionRow
	err := p.db.GetContext(ctx, &r,
		`SELECT bot_id, user_id, chain_id, step_id, answers,
		        username, first_name, last_name, photo_url, updated_at
		   FROM sessions WHERE bot_id = $1 AND user_id = $2`, botID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: select session: %w", err)
	}
	return r.toSession()
}

// GetOrCreate upserts the session row positioned at the chain's entry step.
// Answers from a previous run of the chain survive the reposition.
func (p *PGSessionStore) GetOrCreate(ctx context.Context, botID, userID, chainID, entryStepID int64) (*chain.Session, error) {
	var r sessionRow
	err := p.db.GetContext(ctx, &r,
		`INSERT INTO sessions (bot_id, user_id, chain_id, step_id, answers, updated_at)
		 VALUES ($1, $2, $3, $4, '{}'::jsonb, now())
		 ON CONFLICT (bot_id, user_id) DO UPDATE
		    SET chain_id = EXCLUDED.chain_id,
		        step_id = EXCLUDED.step_id,
		        updated_at = now()
		 RETURNING bot_id, user_id, chain_id, step_id, answers,
		           username, first_name, last_name, photo_url, updated_at`,
		botID, userID, nullID(chainID), nullID(entryStepID))
	if err != nil {
		return nil, fmt.Errorf("storage: upsert session: %w", err)
	}
	return r.toSession()
}

// Save persists the session's position, answers, and user identity.
func (p *PGSessionStore) Save(ctx context.Context, s *chain.Session) error {
	answers := s.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("storage: encode answers: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO sessions (bot_id, user_id, chain_id, step_id, answers,
		                       username, first_name, last_name, photo_url, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (bot_id, user_id) DO UPDATE
		    SET chain_id = EXCLUDED.chain_id,
		        step_id = EXCLUDED.step_id,
		        answers = EXCLUDED.answers,
		        username = EXCLUDED.username,
		        first_name = EXCLUDED.first_name,
		        last_name = EXCLUDED.last_name,
		        photo_url = EXCLUDED.photo_url,
		        updated_at = now()`,
		s.BotID, s.UserID, nullID(s.ChainID), nullID(s.StepID), raw,
		s.User.Username, s.User.FirstName, s.User.LastName, s.User.PhotoURL)
	if err != nil {
		return fmt.Errorf("storage: upsert session: %w", err)
	}
	return nil
}

// Record writes the answer onto the session and persists the whole row.
func (p *PGSessionStore) Record(ctx context.Context, s *chain.Session, stepName, answer string) error {
	s.RecordAnswer(stepName, answer)
	return p.Save(ctx, s)
}

// ListResults pages through per-user answer maps for a chain, most recent
// interaction first.
func (p *PGSessionStore) ListResults(ctx context.Context, botID, chainID int64, page, perPage int) (*chain.ResultPage, error) {
	page, perPage = chain.NormalizePage(page, perPage)

	var total int
	err := p.db.GetContext(ctx, &total,
		`SELECT count(*) FROM sessions
		  WHERE bot_id = $1 AND chain_id = $2 AND answers <> '{}'::jsonb`,
		botID, chainID)
	if err != nil {
		return nil, fmt.Errorf("storage: count results: %w", err)
	}

	var rows []sessionRow
	err = p.db.SelectContext(ctx, &rows,
		`SELECT bot_id, user_id, chain_id, step_id, answers,
		        username, first_name, last_name, photo_url, updated_at
		   FROM sessions
		  WHERE bot_id = $1 AND chain_id = $2 AND answers <> '{}'::jsonb
		  ORDER BY updated_at DESC
		  LIMIT $3 OFFSET $4`,
		botID, chainID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("storage: select results: %w", err)
	}

	items := make([]chain.Result, 0, len(rows))
	for _, r := range rows {
		s, err := r.toSession()
		if err != nil {
			return nil, err
		}
		items = append(items, chain.Result{
			User:            s.User,
			Answers:         s.Answers,
			LastInteraction: s.UpdatedAt,
		})
	}
	return &chain.ResultPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: chain.PageCount(total, perPage),
	}, nil
}
