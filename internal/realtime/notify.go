package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/seuros/leadtrack/internal/logging"
)

// execer is the part of *pgxpool.Pool and *pgx.Conn used to NOTIFY.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Notifier publishes payloads through pg_notify so every server process
// sharing the database sees them.
type Notifier struct {
	db execer
}

func NewNotifier(db execer) *Notifier {
	return &Notifier{db: db}
}

func (n *Notifier) Publish(ctx context.Context, p Payload) error {
	if n == nil || n.db == nil {
		return ErrNoPublisher
	}
	body, err := p.Encode()
	if err != nil {
		return err
	}
	_, err = n.db.Exec(ctx, "SELECT pg_notify($1, $2)", Channel, body)
	return err
}

// Listener relays NOTIFY messages on Channel into a Hub.
type Listener struct {
	connString string
	hub        *Hub
	minBackoff time.Duration
	maxBackoff time.Duration

	// listen reports whether LISTEN succeeded before the connection ended.
	listen func(ctx context.Context) (bool, error)
	wait   func(ctx context.Context, d time.Duration) bool
}

func NewListener(connString string, hub *Hub) *Listener {
	l := &Listener{
		connString: connString,
		hub:        hub,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		wait:       sleepCtx,
	}
	l.listen = l.listenOnce
	return l
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// Run listens until ctx is cancelled, reconnecting with backoff.
func (l *Listener) Run(ctx context.Context) error {
	log := logging.Named("realtime")
	backoff := l.minBackoff

	for {
		listened, err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if listened {
			backoff = l.minBackoff
		}
		log.Warn("realtime listener disconnected", zap.Error(err), zap.Duration("retry_in", backoff))

		if !l.wait(ctx, backoff) {
			return nil
		}
		backoff = min(backoff*2, l.maxBackoff)
	}
}

func (l *Listener) listenOnce(ctx context.Context) (bool, error) {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return false, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return false, err
	}
	logging.Named("realtime").Info("realtime listener started", zap.String("channel", Channel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return true, err
		}
		l.dispatch(n.Payload)
	}
}

func (l *Listener) dispatch(raw string) {
	p, err := DecodePayload(raw)
	if err != nil {
		logging.Named("realtime").Warn("discarding malformed notification", zap.Error(err))
		return
	}
	l.hub.Broadcast(p)
}

// ErrNoPublisher is returned by Publish on a nil Notifier.
var ErrNoPublisher = errors.New("realtime publisher not configured")
