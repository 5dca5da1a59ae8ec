// Package push maintains a websocket subscription to server-initiated
// correction messages. The server may revise a membership at any time (another
// device toggled it, moderation removed it); corrections flow through the same
// reconciliation path as toggle responses.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/satchelbase/satchel/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Reconnect backoff bounds.
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Correction is a server-initiated membership revision.
type Correction struct {
	Relation model.RelationName `json:"relation"`
	Key      model.Key          `json:"key"`
	Member   bool               `json:"member"`
}

// Handler receives each decoded correction. It is called from the listener
// goroutine and must not block.
type Handler func(Correction)

// TokenSource yields a bearer token for the connection handshake. A nil
// source connects unauthenticated.
type TokenSource interface {
	Token() (string, error)
}

// Listener keeps a websocket connection to the correction feed alive,
// redialing with backoff whenever it drops.
type Listener struct {
	url     string
	tokens  TokenSource
	handler Handler
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewListener creates a listener for the given websocket URL.
func NewListener(url string, tokens TokenSource, handler Handler, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		url:     url,
		tokens:  tokens,
		handler: handler,
		logger:  logger.With("component", "remote-push"),
	}
}

// Start launches the listener goroutine. It returns immediately; connection
// failures are retried in the background.
func (l *Listener) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.run(runCtx)
}

// Stop tears down the connection and waits for the listener goroutine.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	conn := l.conn
	done := l.done
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		conn.Close()
	}
	<-done
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	backoff := initialBackoff
	for {
		conn, err := l.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Debug("dial failed, will retry", "url", l.url, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = initialBackoff
		l.logger.Info("correction feed connected", "url", l.url)

		l.mu.Lock()
		l.conn = conn
		l.mu.Unlock()

		l.readPump(ctx, conn)

		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if l.tokens != nil {
		token, err := l.tokens.Token()
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, l.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readPump reads corrections until the connection dies. There is at most one
// reader per connection; the ping ticker is the only concurrent writer.
func (l *Listener) readPump(ctx context.Context, conn *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	go l.pingLoop(connCtx, conn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				l.logger.Warn("correction feed closed", "error", err)
			} else {
				l.logger.Debug("correction feed closed")
			}
			return
		}

		var corr Correction
		if err := json.Unmarshal(message, &corr); err != nil {
			l.logger.Warn("malformed correction discarded", "error", err)
			continue
		}
		if corr.Relation == "" || corr.Key == "" {
			l.logger.Warn("incomplete correction discarded")
			continue
		}

		l.handler(corr)
	}
}

func (l *Listener) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
