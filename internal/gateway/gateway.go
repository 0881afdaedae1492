// Package gateway lets the panel be driven from a chat app instead of the
// terminal.
package gateway

import "context"

// Messenger defines the interface for chat gateways.
type Messenger interface {
	// Start receives messages until ctx is done or Stop is called.
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

// Executor runs one line of user input: a request, a question or a /command.
type Executor interface {
	Execute(ctx context.Context, line string) error
}
