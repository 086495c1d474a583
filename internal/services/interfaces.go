package services

import (
	"context"
	"errors"
	"time"

	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

// ErrCacheMiss is returned by RedisClient.Get for a missing key.
var ErrCacheMiss = errors.New("cache miss")

// CommandTag is the result of an Exec.
type CommandTag interface {
	RowsAffected() int64
}

type Row interface {
	Scan(dest ...any) error
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// DBConn is the subset of a pgx pool the services use.
type DBConn interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// RedisClient is the subset of go-redis the services use.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// SessionServiceInterface binds archive API tokens to browser sessions.
type SessionServiceInterface interface {
	Create(ctx context.Context, cred models.Credential) (token string, err error)
	Resolve(ctx context.Context, token string) (*models.Credential, error)
	Delete(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context) (int64, error)
}
