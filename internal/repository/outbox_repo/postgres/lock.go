package postgres

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
)

// publisherLockKey is an arbitrary application-wide advisory lock key for the
// outbox publisher. All publisher instances must use the same key.
const publisherLockKey int64 = 0x6f7574626f78 // "outbox"

type advisoryLock struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAdvisoryLock returns a PublisherLock backed by a Postgres session
// advisory lock. The lock is held on a pinned connection so that acquire and
// release happen on the same session.
func NewAdvisoryLock(db *sql.DB, l *zap.Logger) outbox_repo.PublisherLock {
	return &advisoryLock{db: db, logger: l}
}

func (a *advisoryLock) TryLock(ctx context.Context) (func(), bool, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, publisherLockKey).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, err
	}
	if !acquired {
		conn.Close()
		a.logger.Debug("Outbox publisher lock held elsewhere, skipping tick")
		return nil, false, nil
	}

	release := func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, publisherLockKey); err != nil {
			a.logger.Error("Failed to release outbox publisher lock", zap.Error(err))
		}
		conn.Close()
	}
	return release, true, nil
}
