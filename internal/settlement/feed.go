// Package settlement consumes settlement events from an external
// collaborator over WebSocket and applies them to the ledger. The feed is
// best-effort delivery on the wire; the ledger's reference deduplication
// makes redelivery after a reconnect harmless.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tola-ledger/internal/domain"
	"tola-ledger/internal/ledger"
	"tola-ledger/internal/observability"
)

// Applier applies one settlement event to the ledger.
type Applier interface {
	ApplySettlement(ctx context.Context, ev domain.SettlementEvent) (*ledger.SettlementResult, error)
}

// FeedConfig configures feed connection behavior.
type FeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading a message.
	ReadTimeout time.Duration
	// HandshakeTimeout is the timeout for the WebSocket handshake.
	HandshakeTimeout time.Duration
	// ApplyRetries is how many times a contended apply is retried before the
	// event is dropped for redelivery.
	ApplyRetries int
}

// DefaultFeedConfig returns default feed configuration.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		ApplyRetries:      3,
	}
}

// Feed reads JSON settlement events from a WebSocket endpoint and applies
// them in arrival order.
type Feed struct {
	endpoint string
	applier  Applier
	config   FeedConfig
	logger   *zap.Logger

	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewFeed creates a Feed. config may be nil for defaults.
func NewFeed(endpoint string, applier Applier, config *FeedConfig, logger *zap.Logger) *Feed {
	cfg := DefaultFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		endpoint: endpoint,
		applier:  applier,
		config:   cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the feed until ctx is cancelled or Close is called.
func (f *Feed) Start(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run(ctx)
	}()
}

// Close stops the feed and waits for the consumer to exit.
func (f *Feed) Close() {
	if f.closed.CompareAndSwap(false, true) {
		close(f.done)
	}
	f.wg.Wait()
}

func (f *Feed) run(ctx context.Context) {
	delay := f.config.ReconnectDelay

	for {
		if f.stopped(ctx) {
			return
		}

		conn, err := f.dial(ctx)
		if err != nil {
			f.logger.Warn("settlement feed dial failed",
				zap.String("endpoint", f.endpoint),
				zap.Duration("retry_in", delay),
				zap.Error(err))
			if !f.sleep(ctx, delay) {
				return
			}
			delay = f.nextDelay(delay)
			continue
		}

		f.logger.Info("settlement feed connected", zap.String("endpoint", f.endpoint))
		delay = f.config.ReconnectDelay

		err = f.consume(ctx, conn)
		conn.Close()
		if f.stopped(ctx) {
			return
		}

		observability.DefaultMetrics.FeedReconnects.Inc()
		f.logger.Warn("settlement feed disconnected",
			zap.Duration("retry_in", delay),
			zap.Error(err))
		if !f.sleep(ctx, delay) {
			return
		}
		delay = f.nextDelay(delay)
	}
}

func (f *Feed) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: f.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// consume reads events until the connection drops or the feed stops.
func (f *Feed) consume(ctx context.Context, conn *websocket.Conn) error {
	for {
		if f.stopped(ctx) {
			return nil
		}

		if err := conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var ev domain.SettlementEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			observability.RecordSettlementRejected("malformed_payload")
			f.logger.Warn("malformed settlement event dropped", zap.Error(err))
			continue
		}

		f.apply(ctx, ev)
		observability.DefaultMetrics.LastSettlementEvent.SetToCurrentTime()
	}
}

// apply pushes one event into the ledger, retrying briefly on contention.
// Other failures are logged and skipped; the collaborator redelivers and the
// reference dedup keeps replays safe.
func (f *Feed) apply(ctx context.Context, ev domain.SettlementEvent) {
	var err error
	for attempt := 0; attempt <= f.config.ApplyRetries; attempt++ {
		var res *ledger.SettlementResult
		res, err = f.applier.ApplySettlement(ctx, ev)
		if err == nil {
			f.logger.Debug("settlement event processed",
				zap.String("reference", ev.ExternalReference),
				zap.String("kind", string(ev.Kind)),
				zap.Bool("applied", res.Applied))
			return
		}
		if !errors.Is(err, ledger.ErrContention) {
			break
		}
		if !f.sleep(ctx, time.Duration(attempt+1)*50*time.Millisecond) {
			return
		}
	}

	f.logger.Error("settlement event failed",
		zap.String("reference", ev.ExternalReference),
		zap.String("kind", string(ev.Kind)),
		zap.Error(err))
}

func (f *Feed) stopped(ctx context.Context) bool {
	select {
	case <-f.done:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep waits for d, returning false when the feed stopped meanwhile.
func (f *Feed) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-f.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (f *Feed) nextDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > f.config.MaxReconnectDelay {
		next = f.config.MaxReconnectDelay
	}
	return next
}
