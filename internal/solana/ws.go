package solana

import "context"

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeLogs subscribes to program logs matching the filter.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// SubscribeSignature waits for a single signature to reach the client's
	// commitment. The channel receives one notification and is then closed.
	SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// LogsFilter defines subscription filter for logs.
type LogsFilter struct {
	// Mentions filters logs that mention any of these program IDs.
	Mentions []string
}

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}

// SignatureNotification reports the outcome of a subscribed signature.
// Err is nil when the transaction succeeded.
type SignatureNotification struct {
	Slot int64
	Err  interface{}
}
