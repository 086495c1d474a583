package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/ficarchive-web/internal/logging"
	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

const sessionKeyPrefix = "session:"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrMissingAPIToken = errors.New("api token is required")
)

// SessionService stores the archive API token for each browser session.
// Redis is the primary store; PostgreSQL takes over when Redis is unavailable.
type SessionService struct {
	db    DBConn
	redis RedisClient
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionService(db DBConn, redis RedisClient, ttl time.Duration) *SessionService {
	return &SessionService{
		db:    db,
		redis: redis,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *SessionService) GenerateSessionToken() (token string, hash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	token = hex.EncodeToString(bytes)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	hashBytes := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hashBytes[:])
}

// HashToken is the stable key a session token is stored under.
func HashToken(token string) string {
	return hashToken(token)
}

// Create binds cred to a new browser session and returns the session token.
func (s *SessionService) Create(ctx context.Context, cred models.Credential) (string, error) {
	cred.Token = strings.TrimSpace(cred.Token)
	if cred.Token == "" {
		return "", ErrMissingAPIToken
	}

	token, tokenHash, err := s.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	now := s.now()
	session := models.WebSession{
		TokenHash: tokenHash,
		Username:  strings.TrimSpace(cred.Username),
		APIToken:  cred.Token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}

	err = s.redis.Set(ctx, sessionKeyPrefix+tokenHash, payload, s.ttl)
	if err != nil {
		logging.FromContext(ctx).Warn("Redis session write failed, using database", map[string]interface{}{
			"error": err.Error(),
		})
		_, err = s.db.Exec(ctx,
			`INSERT INTO web_sessions (token_hash, username, api_token, created_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			session.TokenHash, session.Username, session.APIToken, session.CreatedAt, session.ExpiresAt,
		)
		if err != nil {
			return "", fmt.Errorf("creating session in database: %w", err)
		}
	}

	return token, nil
}

// Resolve returns the credential bound to token.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.Credential, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	tokenHash := hashToken(token)

	redisKey := sessionKeyPrefix + tokenHash
	raw, err := s.redis.Get(ctx, redisKey)
	if err == nil {
		var session models.WebSession
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			return nil, fmt.Errorf("decoding session: %w", err)
		}
		_ = s.redis.Expire(ctx, redisKey, s.ttl)
		return session.Credential(), nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logging.FromContext(ctx).Warn("Redis session read failed, using database", map[string]interface{}{
			"error": err.Error(),
		})
	}

	session := models.WebSession{}
	err = s.db.QueryRow(ctx,
		`SELECT token_hash, username, api_token, created_at, expires_at
		 FROM web_sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&session.TokenHash, &session.Username, &session.APIToken, &session.CreatedAt, &session.ExpiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if session.Expired(s.now()) {
		_, _ = s.db.Exec(ctx, "DELETE FROM web_sessions WHERE token_hash = $1", tokenHash)
		return nil, ErrSessionExpired
	}

	return session.Credential(), nil
}

func (s *SessionService) Delete(ctx context.Context, token string) error {
	tokenHash := hashToken(token)

	_ = s.redis.Del(ctx, sessionKeyPrefix+tokenHash)

	_, err := s.db.Exec(ctx, "DELETE FROM web_sessions WHERE token_hash = $1", tokenHash)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	return nil
}

// PurgeExpired removes expired database sessions. Redis expires its own keys.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, "DELETE FROM web_sessions WHERE expires_at < $1", s.now())
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	if tag == nil {
		return 0, nil
	}
	return tag.RowsAffected(), nil
}
