package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/botfactory/chainbot/core/chain"
)

// PGMenuStore reads dashboard-owned main menu configuration from Postgres.
type PGMenuStore struct {
	db *sqlx.DB
}

// NewPGMenuStore wraps an open database handle.
func NewPGMenuStore(db *sqlx.DB) *PGMenuStore {
	return &PGMenuStore{db: db}
}

type menuRow struct {
	BotID          int64  `db:"bot_id"`
	WelcomeMessage string `db:"welcome_message"`
}

type menuButtonRow struct {
	ID        int64         `db:"id"`
	BotID     int64         `db:"bot_id"`
	Text      string        `db:"text"`
	ReplyText string        `db:"reply_text"`
	ChainID   sql.NullInt64 `db:"chain_id"`
}

func (r menuButtonRow) toButton() chain.MenuButton {
	return chain.MenuButton{
		ID:        r.ID,
		BotID:     r.BotID,
		Text:      r.Text,
		ReplyText: r.ReplyText,
		ChainID:   r.ChainID.Int64,
	}
}

// Menu returns the bot's main menu with buttons in configured order.
func (p *PGMenuStore) Menu(ctx context.Context, botID int64) (*chain.Menu, error) {
	var mr menuRow
	err := p.db.GetContext(ctx, &mr,
		`SELECT bot_id, welcome_message FROM main_menus WHERE bot_id = $1`, botID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chain.ErrMenuNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: select menu for bot %d: %w", botID, err)
	}

	var brs []menuButtonRow
	err = p.db.SelectContext(ctx, &brs,
		`SELECT id, bot_id, text, reply_text, chain_id
		   FROM menu_buttons WHERE bot_id = $1 ORDER BY position, id`, botID)
	if err != nil {
		return nil, fmt.Errorf("storage: select menu buttons for bot %d: %w", botID, err)
	}

	menu := &chain.Menu{BotID: mr.BotID, WelcomeMessage: mr.WelcomeMessage}
	for _, br := range brs {
		menu.Buttons = append(menu.Buttons, br.toButton())
	}
	return menu, nil
}

// ButtonByText resolves a menu entry by its visible label.
func (p *PGMenuStore) ButtonByText(ctx context.Context, botID int64, text string) (*chain.MenuButton, error) {
	var br menuButtonRow
	err := p.db.GetContext(ctx, &br,
		`SELECT id, bot_id, text, reply_text, chain_id
		   FROM menu_buttons WHERE bot_id = $1 AND text = $2
		  ORDER BY position, id LIMIT 1`, botID, text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chain.ErrMenuButtonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: select menu button for bot %d: %w", botID, err)
	}
	b := br.toButton()
	return &b, nil
}
