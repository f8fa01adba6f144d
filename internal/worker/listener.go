package worker

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chunkvault/chunkvault/internal/logging"
	"github.com/chunkvault/chunkvault/internal/repositories/jobs"
)

// PgListener wakes the claim loop on Postgres notifications instead of a
// blind sleep, falling back to the poll interval when the connection is
// down or nothing arrives.
type PgListener struct {
	dsn  string
	log  logging.Logger
	conn *pgx.Conn
}

func NewPgListener(dsn string, log logging.Logger) *PgListener {
	return &PgListener{dsn: dsn, log: log}
}

func (l *PgListener) ensureConn(ctx context.Context) error {
	if l.conn != nil && !l.conn.IsClosed() {
		return nil
	}

	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+jobs.NotifyChannel); err != nil {
		conn.Close(ctx)
		return err
	}
	l.conn = conn
	return nil
}

// Wait blocks until a notification arrives or max elapses. Errors degrade
// to a plain sleep so the claim loop keeps its poll-interval behavior.
func (l *PgListener) Wait(ctx context.Context, max time.Duration) {
	if err := l.ensureConn(ctx); err != nil {
		l.log.Warn(ctx, "queue listener unavailable, falling back to polling", "error", err.Error())
		SleepWaiter{}.Wait(ctx, max)
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	if _, err := l.conn.WaitForNotification(waitCtx); err != nil {
		if waitCtx.Err() == nil && ctx.Err() == nil {
			// real connection error, not a timeout: reconnect next round
			l.log.Warn(ctx, "queue listener error", "error", err.Error())
			l.conn.Close(ctx)
			l.conn = nil
		}
	}
}

// Close releases the listening connection.
func (l *PgListener) Close(ctx context.Context) {
	if l.conn != nil {
		l.conn.Close(ctx)
		l.conn = nil
	}
}
