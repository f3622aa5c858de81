package chain

import "errors"

var (
	// ErrChainNotFound reports a chain id with no stored chain.
	ErrChainNotFound = errors.New("chain: chain not found")
	// ErrStepNotFound reports a step id that resolves to no stored step.
	// The engine treats it as a dangling reference: logged and answered
	// with the default reply, never dereferenced.
	ErrStepNotFound = errors.New("chain: step not found")
	// ErrSessionNotFound reports a (bot, user) pair with no session.
	ErrSessionNotFound = errors.New("chain: session not found")
	// ErrMenuNotFound reports a bot without a configured main menu.
	ErrMenuNotFound = errors.New("chain: main menu not found")
	// ErrMenuButtonNotFound reports a menu lookup miss for a button label.
	ErrMenuButtonNotFound = errors.New("chain: menu button not found")
)
