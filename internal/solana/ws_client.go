package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription ID.
	SubscribeTimeout time.Duration
	// Commitment is sent with every subscription.
	Commitment string
	// Logger receives connection diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		Commitment:        CommitmentConfirmed,
	}
}

// subscription is an active subscription that survives reconnects.
// Exactly one of logs and sig is set.
type subscription struct {
	method string
	params []interface{}
	logs   chan LogNotification
	sig    chan SignatureNotification
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *zap.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to the subscriber
	subs   map[int64]*subscription
	subsMu sync.RWMutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 30 * time.Second
	}
	if cfg.Commitment == "" {
		cfg.Commitment = CommitmentConfirmed
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		logger:      logger.Named("ws"),
		subs:        make(map[int64]*subscription),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	// Start reader goroutine
	c.wg.Add(1)
	go c.readLoop()

	// Start ping goroutine
	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeLogs subscribes to program logs matching the filter.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	mentionsFilter := make(map[string]interface{})
	if len(filter.Mentions) > 0 {
		mentionsFilter["mentions"] = filter.Mentions
	} else {
		mentionsFilter["all"] = nil
	}

	// Large buffer absorbs bursts; delivery blocks rather than drops.
	sub := &subscription{
		method: "logsSubscribe",
		params: []interface{}{
			mentionsFilter,
			map[string]string{"commitment": c.config.Commitment},
		},
		logs: make(chan LogNotification, 10000),
	}
	if err := c.subscribe(ctx, sub); err != nil {
		return nil, err
	}
	return sub.logs, nil
}

// SubscribeSignature subscribes to a signature's confirmation.
func (c *WSClientImpl) SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error) {
	sub := &subscription{
		method: "signatureSubscribe",
		params: []interface{}{
			signature,
			map[string]string{"commitment": c.config.Commitment},
		},
		sig: make(chan SignatureNotification, 1),
	}
	if err := c.subscribe(ctx, sub); err != nil {
		return nil, err
	}
	return sub.sig, nil
}

func (c *WSClientImpl) subscribe(ctx context.Context, sub *subscription) error {
	subID, err := c.request(ctx, sub.method, sub.params)
	if err != nil {
		return err
	}
	c.subsMu.Lock()
	c.subs[subID] = sub
	c.subsMu.Unlock()
	c.logger.Debug("subscribed", zap.String("method", sub.method), zap.Int64("subscription", subID))
	return nil
}

// request sends a subscribe request and waits for the subscription ID.
func (c *WSClientImpl) request(ctx context.Context, method string, params []interface{}) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	forget := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		forget()
		return 0, fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		forget()
		return 0, fmt.Errorf("write %s: %w", method, err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case subID, ok := <-confirmCh:
		if !ok {
			return 0, fmt.Errorf("client closed")
		}
		return subID, nil
	case <-timer.C:
		forget()
		return 0, fmt.Errorf("%s timeout after %s", method, c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		forget()
		return 0, ctx.Err()
	}
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	// Close all subscription channels
	c.subsMu.Lock()
	for id, sub := range c.subs {
		sub.close()
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	return nil
}

func (s *subscription) close() {
	if s.logs != nil {
		close(s.logs)
	}
	if s.sig != nil {
		close(s.sig)
	}
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("read failed, reconnecting", zap.Error(err), zap.Duration("delay", reconnectDelay))

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			// Exponential backoff
			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// retried on the next read error
		c.logger.Warn("reconnect failed", zap.Error(err))
		return
	}

	c.resubscribeAll()
}

// resubscribeAll replays every active subscription on the new connection.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.RLock()
	active := make(map[int64]*subscription, len(c.subs))
	for id, sub := range c.subs {
		active[id] = sub
	}
	c.subsMu.RUnlock()

	for oldID, sub := range active {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.request(ctx, sub.method, sub.params)
		cancel()

		if err != nil {
			// keep old mapping, the next reconnect retries
			c.logger.Warn("resubscribe failed", zap.String("method", sub.method), zap.Error(err))
			continue
		}

		c.subsMu.Lock()
		delete(c.subs, oldID)
		c.subs[newID] = sub
		c.subsMu.Unlock()
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Debug("unparseable message", zap.Error(err))
		return
	}

	switch {
	case env.Error != nil:
		// the pending subscribe times out
		c.logger.Warn("error response",
			zap.Uint64("id", env.ID),
			zap.Int("code", env.Error.Code),
			zap.String("message", env.Error.Message),
		)
	case env.Method != "" && env.Params != nil:
		c.handleNotification(env.Method, env.Params)
	case env.ID != 0 && len(env.Result) > 0:
		c.handleSubscribeResponse(env.ID, env.Result)
	}
}

// handleSubscribeResponse handles subscription confirmation.
func (c *WSClientImpl) handleSubscribeResponse(id uint64, result json.RawMessage) {
	var subID int64
	if err := json.Unmarshal(result, &subID); err != nil {
		// unsubscribe acknowledgements carry a bool
		return
	}

	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[id]
	if ok {
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- subID:
		default:
		}
	}
}

// handleNotification dispatches a notification to its subscriber.
func (c *WSClientImpl) handleNotification(method string, params *wsNotificationParams) {
	c.subsMu.RLock()
	sub, ok := c.subs[params.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	var slot int64
	if params.Result.Context != nil {
		slot = params.Result.Context.Slot
	}

	switch method {
	case "logsNotification":
		if sub.logs == nil {
			return
		}
		var value wsLogsValue
		if err := json.Unmarshal(params.Result.Value, &value); err != nil {
			c.logger.Debug("bad logs notification", zap.Error(err))
			return
		}
		// Block until we can send - never drop events
		select {
		case sub.logs <- LogNotification{Signature: value.Signature, Slot: slot, Logs: value.Logs, Err: value.Err}:
		case <-c.done:
		}

	case "signatureNotification":
		if sub.sig == nil {
			return
		}
		var value wsSignatureValue
		if err := json.Unmarshal(params.Result.Value, &value); err != nil {
			c.logger.Debug("bad signature notification", zap.Error(err))
			return
		}
		// the node drops signature subscriptions after the first notification
		c.subsMu.Lock()
		delete(c.subs, params.Subscription)
		c.subsMu.Unlock()
		sub.sig <- SignatureNotification{Slot: slot, Err: value.Err}
		close(sub.sig)
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// reader handles reconnect
					c.logger.Debug("ping failed", zap.Error(err))
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsEnvelope struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id"`
	Result  json.RawMessage       `json:"result"`
	Error   *wsError              `json:"error"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext      `json:"context"`
	Value   json.RawMessage `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}

type wsSignatureValue struct {
	Err interface{} `json:"err"`
}

var _ WSClient = (*WSClientImpl)(nil)
