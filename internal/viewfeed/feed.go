// Package viewfeed streams session snapshots to an external renderer over a
// websocket and relays the renderer's command frames back.
package viewfeed

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("view feed not connected")

// HeaderProvider injects handshake headers.
type HeaderProvider func() map[string]string

type Feed struct {
	wsURL  string
	logger *zap.Logger
	dryrun bool

	conn   *websocket.Conn
	connM  sync.RWMutex
	writeM sync.Mutex

	state  State
	stateM sync.RWMutex

	msgCbs   []MessageCallback
	stateCbs []StateCallback
	cbM      sync.RWMutex

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	headerProvider HeaderProvider
}

type Option func(*Feed)

func WithLogger(l *zap.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithDryRun logs snapshots instead of writing them.
func WithDryRun(on bool) Option {
	return func(f *Feed) { f.dryrun = on }
}

func WithPingInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.pingInterval = d
		}
	}
}

// BearerToken authenticates the handshake; an empty token sends nothing.
func BearerToken(token string) HeaderProvider {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return func() map[string]string {
		return map[string]string{"Authorization": "Bearer " + token}
	}
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(f *Feed) { f.headerProvider = h }
}

func New(wsURL string, maxReconnectAttempts int, opts ...Option) *Feed {
	f := &Feed{
		wsURL:                wsURL,
		logger:               zap.NewNop(),
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
	f.rootCtx, f.rootCancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) Connect(ctx context.Context) error {
	if f.dryrun {
		f.setState(StateConnected)
		return nil
	}
	switch f.State() {
	case StateConnected, StateConnecting:
		return nil
	}
	f.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := f.dial(dialCtx)
	if err != nil {
		f.logger.Warn("viewfeed_connect_failed", zap.String("url", f.wsURL), zap.Error(err))
		f.setState(StateFailed)
		f.scheduleReconnect()
		return err
	}
	f.attach(conn)
	return nil
}

func (f *Feed) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, f.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      f.buildHeaders(),
	})
	return conn, err
}

func (f *Feed) attach(conn *websocket.Conn) {
	if f.isStopping() {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
		return
	}
	f.connM.Lock()
	f.conn = conn
	f.connM.Unlock()
	f.setState(StateConnected)
	f.logger.Info("viewfeed_connected", zap.String("url", f.wsURL))

	f.wg.Add(2)
	go f.listen(conn)
	go f.pingLoop(conn)
}

// Publish writes v as one JSON frame. Writes are serialized.
func (f *Feed) Publish(ctx context.Context, v any) error {
	if f.dryrun {
		f.logger.Debug("viewfeed_dryrun")
		return nil
	}
	conn := f.currentConn()
	if conn == nil || f.State() != StateConnected {
		return ErrNotConnected
	}
	dctx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	f.writeM.Lock()
	defer f.writeM.Unlock()
	return wsjson.Write(dctx, conn, v)
}

func (f *Feed) listen(conn *websocket.Conn) {
	defer f.wg.Done()
	for {
		if f.isStopping() {
			return
		}
		var msg Message
		if err := wsjson.Read(f.rootCtx, conn, &msg); err != nil {
			if f.isStopping() {
				return
			}
			f.logger.Warn("viewfeed_read_failed", zap.Error(err))
			f.drop(conn, "reconnect")
			return
		}

		f.cbM.RLock()
		callbacks := make([]MessageCallback, len(f.msgCbs))
		copy(callbacks, f.msgCbs)
		f.cbM.RUnlock()
		for _, cb := range callbacks {
			cb(&msg)
		}
	}
}

func (f *Feed) pingLoop(conn *websocket.Conn) {
	defer f.wg.Done()
	t := time.NewTicker(f.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-f.stopCh:
			return
		case <-t.C:
			if f.currentConn() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(f.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				if f.isStopping() {
					return
				}
				f.drop(conn, "ping failure")
				return
			}
		}
	}
}

// drop closes conn if it is still current and starts reconnecting.
func (f *Feed) drop(conn *websocket.Conn, reason string) {
	f.connM.Lock()
	if f.conn != conn {
		f.connM.Unlock()
		return
	}
	f.conn = nil
	f.connM.Unlock()
	_ = conn.Close(websocket.StatusGoingAway, reason)
	f.setState(StateDisconnected)
	f.scheduleReconnect()
}

func (f *Feed) scheduleReconnect() {
	if f.maxReconnectAttempts <= 0 || f.isStopping() {
		return
	}
	f.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= f.maxReconnectAttempts; attempt++ {
			select {
			case <-f.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}

			dialCtx, cancel := context.WithTimeout(f.rootCtx, 10*time.Second)
			conn, err := f.dial(dialCtx)
			cancel()
			if err != nil {
				f.logger.Debug("viewfeed_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			f.attach(conn)
			return
		}
		f.setState(StateFailed)
	}()
}

func (f *Feed) OnMessage(cb MessageCallback) {
	if cb == nil {
		return
	}
	f.cbM.Lock()
	defer f.cbM.Unlock()
	f.msgCbs = append(f.msgCbs, cb)
}

func (f *Feed) OnStateChange(cb StateCallback) {
	if cb == nil {
		return
	}
	f.cbM.Lock()
	defer f.cbM.Unlock()
	f.stateCbs = append(f.stateCbs, cb)
}

func (f *Feed) State() State {
	f.stateM.RLock()
	defer f.stateM.RUnlock()
	return f.state
}

func (f *Feed) setState(state State) {
	f.stateM.Lock()
	f.state = state
	f.stateM.Unlock()

	f.cbM.RLock()
	callbacks := make([]StateCallback, len(f.stateCbs))
	copy(callbacks, f.stateCbs)
	f.cbM.RUnlock()
	for _, cb := range callbacks {
		cb(state)
	}
}

func (f *Feed) Close(ctx context.Context) error {
	f.stopOnce.Do(func() { close(f.stopCh) })
	f.connM.Lock()
	conn := f.conn
	f.conn = nil
	f.connM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	f.rootCancel()

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		f.setState(StateDisconnected)
		return nil
	}
}

func (f *Feed) currentConn() *websocket.Conn {
	f.connM.RLock()
	defer f.connM.RUnlock()
	return f.conn
}

func (f *Feed) isStopping() bool {
	select {
	case <-f.stopCh:
		return true
	default:
		return false
	}
}

func (f *Feed) buildHeaders() http.Header {
	hdr := http.Header{}
	if f.headerProvider == nil {
		return hdr
	}
	for k, v := range f.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}
