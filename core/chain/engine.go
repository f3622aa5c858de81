package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/botfactory/chainbot/core/logger"
)

// BotConfig carries the bot-level defaults the executor falls back to.
// They are injected explicitly so the engine never reads ambient state
// while applying a transition.
type BotConfig struct {
	ID             int64
	DefaultReply   string
	WelcomeMessage string
}

// Options wires the engine's collaborators.
type Options struct {
	Bot      BotConfig
	Graphs   GraphStore
	Sessions SessionStore
	Results  Recorder
	Menu     MenuStore
	Out      Outbound
}

// Engine walks the configured chain graph one hop per inbound update:
// interpret the update against the user's current step, commit the new
// session state, then render and send the next message. Sends are
// best-effort; the transition is committed before delivery and is not
// rolled back when the transport fails.
type Engine struct {
	cfg      BotConfig
	graphs   GraphStore
	sessions SessionStore
	results  Recorder
	menu     MenuStore
	out      Outbound
	locks    *userLocks
}

// NewEngine validates the wiring and constructs an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Graphs == nil {
		return nil, fmt.Errorf("engine: nil graph store")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("engine: nil session store")
	}
	if opts.Results == nil {
		return nil, fmt.Errorf("engine: nil result recorder")
	}
	if opts.Menu == nil {
		return nil, fmt.Errorf("engine: nil menu store")
	}
	if opts.Out == nil {
		return nil, fmt.Errorf("engine: nil outbound sender")
	}
	return &Engine{
		cfg:      opts.Bot,
		graphs:   opts.Graphs,
		sessions: opts.Sessions,
		results:  opts.Results,
		menu:     opts.Menu,
		out:      opts.Out,
		locks:    newUserLocks(),
	}, nil
}

// HandleStart renders the welcome message with the bot's main-menu
// keyboard. The session, if any, is left untouched.
func (e *Engine) HandleStart(ctx context.Context, upd Update) error {
	welcome := e.cfg.WelcomeMessage
	reply := Reply{ChatID: upd.ChatID, Text: welcome}

	menu, err := e.menu.Menu(ctx, upd.BotID)
	switch {
	case err == nil:
		if menu.WelcomeMessage != "" {
			reply.Text = menu.WelcomeMessage
		}
		for _, b := range menu.Buttons {
			reply.Menu = append(reply.Menu, b.Text)
		}
	case errors.Is(err, ErrMenuNotFound):
		// No configured menu yet; the default welcome is still sent.
	default:
		return fmt.Errorf("engine: load menu: %w", err)
	}

	e.deliver(ctx, "start", reply)
	return nil
}

// HandleUpdate processes one inbound update for the user, serialized per
// (bot, user) pair. Every outcome ends in at most one outbound message;
// unrecognized input always yields the bot's default reply.
func (e *Engine) HandleUpdate(ctx context.Context, upd Update) error {
	release := e.locks.acquire(upd.BotID, upd.From.ID)
	defer release()

	sess, err := e.sessions.Get(ctx, upd.BotID, upd.From.ID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		e.defaultReply(ctx, upd)
		return fmt.Errorf("engine: load session: %w", err)
	}

	if sess.Idle() {
		return e.handleIdle(ctx, upd)
	}

	ctx = logger.WithChainMeta(ctx, sess.ChainID, sess.StepID)

	step, err := e.graphs.StepByID(ctx, sess.StepID)
	if err != nil {
		if errors.Is(err, ErrStepNotFound) {
			logger.Warn(ctx, "engine", "reference.dangling",
				slog.String("status", "skip"),
				slog.Int64("step_id", sess.StepID),
			)
			e.defaultReply(ctx, upd)
			return nil
		}
		e.defaultReply(ctx, upd)
		return fmt.Errorf("engine: load step %d: %w", sess.StepID, err)
	}

	tr := Interpret(step, upd)
	if !tr.Matched {
		logger.Debug(ctx, "engine", "transition.unmatched",
			slog.String("status", "unmatched"),
			slog.String("kind", string(upd.Kind)),
			slog.String("step_name", step.Name),
		)
		e.defaultReply(ctx, upd)
		return nil
	}

	// Resolve the target before committing anything so a dangling button
	// link leaves the session where it was.
	var next *Step
	if tr.TargetStepID != 0 {
		next, err = e.graphs.StepByID(ctx, tr.TargetStepID)
		if err != nil {
			if errors.Is(err, ErrStepNotFound) {
				logger.Warn(ctx, "engine", "reference.dangling",
					slog.String("status", "skip"),
					slog.Int64("next_step_id", tr.TargetStepID),
				)
				e.defaultReply(ctx, upd)
				return nil
			}
			e.defaultReply(ctx, upd)
			return fmt.Errorf("engine: load step %d: %w", tr.TargetStepID, err)
		}
	}

	sess.User = upd.From
	if tr.HasAnswer {
		if err := e.results.Record(ctx, sess, step.Name, tr.Answer); err != nil {
			e.defaultReply(ctx, upd)
			return fmt.Errorf("engine: record answer: %w", err)
		}
	}

	sess.Advance(tr.TargetStepID)
	if err := e.sessions.Save(ctx, sess); err != nil {
		e.defaultReply(ctx, upd)
		return fmt.Errorf("engine: save session: %w", err)
	}

	if next == nil {
		logger.Info(ctx, "engine", "chain.completed",
			slog.String("status", "ok"),
			slog.String("step_name", step.Name),
		)
		return nil
	}

	logger.Info(ctx, "engine", "transition.applied",
		slog.String("status", "ok"),
		slog.String("step_name", step.Name),
		slog.Int64("next_step_id", next.ID),
		slog.String("kind", next.Kind().String()),
	)
	e.deliver(ctx, "step", StepReply(upd.ChatID, next))
	return nil
}

// ChainResults exposes the paginated dashboard read path.
func (e *Engine) ChainResults(ctx context.Context, chainID int64, page, perPage int) (*ResultPage, error) {
	page, perPage = NormalizePage(page, perPage)
	return e.results.ListResults(ctx, e.cfg.ID, chainID, page, perPage)
}

// ChainTree loads a chain and serializes it for visualization.
func (e *Engine) ChainTree(ctx context.Context, chainID int64) (*TreeNode, error) {
	g, err := e.graphs.Graph(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return g.Tree(), nil
}

func (e *Engine) handleIdle(ctx context.Context, upd Update) error {
	if upd.Kind == UpdateText {
		btn, err := e.menu.ButtonByText(ctx, upd.BotID, upd.Payload)
		switch {
		case err == nil:
			if btn.ChainID != 0 {
				return e.startChain(ctx, upd, btn.ChainID)
			}
			if btn.ReplyText != "" {
				e.deliver(ctx, "menu", Reply{ChatID: upd.ChatID, Text: btn.ReplyText})
				return nil
			}
		case errors.Is(err, ErrMenuButtonNotFound), errors.Is(err, ErrMenuNotFound):
			// No matching entry point; fall through to the default reply.
		default:
			e.defaultReply(ctx, upd)
			return fmt.Errorf("engine: menu lookup: %w", err)
		}
	}

	logger.Debug(ctx, "engine", "entry.unmatched",
		slog.String("status", "unmatched"),
		slog.String("kind", string(upd.Kind)),
	)
	e.defaultReply(ctx, upd)
	return nil
}

func (e *Engine) startChain(ctx context.Context, upd Update, chainID int64) error {
	ctx = logger.WithChainMeta(ctx, chainID, 0)

	root, err := e.graphs.ChainRoot(ctx, chainID)
	if err != nil {
		if errors.Is(err, ErrChainNotFound) || errors.Is(err, ErrStepNotFound) {
			logger.Warn(ctx, "engine", "chain.entry.missing",
				slog.String("status", "skip"),
			)
			e.defaultReply(ctx, upd)
			return nil
		}
		e.defaultReply(ctx, upd)
		return fmt.Errorf("engine: chain root %d: %w", chainID, err)
	}

	sess, err := e.sessions.GetOrCreate(ctx, upd.BotID, upd.From.ID, chainID, root.ID)
	if err != nil {
		e.defaultReply(ctx, upd)
		return fmt.Errorf("engine: create session: %w", err)
	}
	sess.User = upd.From
	if err := e.sessions.Save(ctx, sess); err != nil {
		e.defaultReply(ctx, upd)
		return fmt.Errorf("engine: save session: %w", err)
	}

	logger.Info(ctx, "engine", "chain.entered",
		slog.String("status", "ok"),
		slog.Int64("step_id", root.ID),
		slog.String("step_name", root.Name),
	)
	e.deliver(ctx, "entry", StepReply(upd.ChatID, root))
	return nil
}

func (e *Engine) defaultReply(ctx context.Context, upd Update) {
	e.deliver(ctx, "default", Reply{ChatID: upd.ChatID, Text: e.cfg.DefaultReply})
}

// deliver hands the reply to the transport. Failures are logged only: the
// session transition, if any, is already committed (at-most-once transition,
// best-effort delivery).
func (e *Engine) deliver(ctx context.Context, operation string, r Reply) {
	if err := e.out.Send(ctx, r); err != nil {
		logger.Warn(ctx, "engine", "send.fail",
			slog.String("status", "fail"),
			slog.String("operation", operation),
			slog.Int64("chat_id", r.ChatID),
			slog.String("err", err.Error()),
		)
	}
}
