package postgres

import (
	"github.com/koustreak/aiodb/internal/database"
)

// NewDatabase returns a handle with a single async connection: the pool is
// pinned to exactly one slot, so concurrent tasks queue on it. Use this
// for scripts and migrations; services want NewPooledDatabase.
func NewDatabase(cfg *database.Config, opts ...database.Option) *database.Handle {
	return newHandle(cfg.Single(), opts)
}

// NewPooledDatabase returns a handle backed by a connection pool sized
// between cfg.MinConns and cfg.MaxConns.
func NewPooledDatabase(cfg *database.Config, opts ...database.Option) *database.Handle {
	return newHandle(cfg, opts)
}

func newHandle(cfg *database.Config, opts []database.Option) *database.Handle {
	if cfg.ConnectTimeout > 0 {
		opts = append([]database.Option{database.WithConnectTimeout(cfg.ConnectTimeout)}, opts...)
	}
	if cfg.QueryTimeout > 0 {
		opts = append([]database.Option{database.WithQueryTimeout(cfg.QueryTimeout)}, opts...)
	}
	return database.NewHandle(NewPool(cfg), Dialect, opts...)
}
