// Package session implements server-side session storage on top of the
// key-value store: creation, sliding-expiration lookup, revocation, per-user
// enumeration and capacity-based eviction.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/creatorlink/core/internal/pkg/kv"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is the sliding session lifetime (7 days).
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultMaxPerUser caps live sessions per user before eviction kicks in.
	DefaultMaxPerUser = 5

	sessionKeyPrefix = "session:"
	userIndexPrefix  = "user_sessions:"
)

// ErrSessionInvalid is returned when a session id does not resolve to a live
// session. Store failures are reported separately and must not be treated as
// a clean miss.
var ErrSessionInvalid = errors.New("invalid or expired session")

// Session is one authenticated client context. The ID doubles as the storage
// key and the bearer credential, so it carries at least 256 bits of entropy.
type Session struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	Email          string                 `json:"email"`
	Role           string                 `json:"role"`
	TenantID       string                 `json:"tenant_id,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	LastAccessedAt time.Time              `json:"last_accessed_at"`
	UserAgent      string                 `json:"user_agent,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Options tunes the store. Zero values fall back to defaults.
type Options struct {
	TTL        time.Duration
	MaxPerUser int
}

// Store owns all session records. No other component mutates them directly.
type Store struct {
	kv         kv.Store
	logger     *zap.Logger
	ttl        time.Duration
	maxPerUser int
	now        func() time.Time
}

// New creates a session store on the given KV backend.
func New(store kv.Store, logger *zap.Logger, opts Options) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	maxPerUser := opts.MaxPerUser
	if maxPerUser <= 0 {
		maxPerUser = DefaultMaxPerUser
	}
	return &Store{
		kv:         store,
		logger:     logger,
		ttl:        ttl,
		maxPerUser: maxPerUser,
		now:        time.Now,
	}
}

// SetClock overrides the time source. Test helper.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// TTL returns the configured sliding window.
func (s *Store) TTL() time.Duration { return s.ttl }

// CreateOptions carries the identity and client context for a new session.
type CreateOptions struct {
	UserID    string
	Email     string
	Role      string
	TenantID  string
	UserAgent string
	IPAddress string
	Metadata  map[string]interface{}
}

// Create mints a new session, adds it to the user's session index and enforces
// the per-user cap by destroying the least recently accessed surplus sessions.
// Index and eviction failures never fail the creation; they are logged and left
// to the self-healing read path.
func (s *Store) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	if opts.UserID == "" {
		return nil, errors.New("session: user id is required")
	}

	id, err := newSessionID(s.now())
	if err != nil {
		return nil, fmt.Errorf("session: generate id: %w", err)
	}

	now := s.now()
	sess := &Session{
		ID:             id,
		UserID:         opts.UserID,
		Email:          opts.Email,
		Role:           opts.Role,
		TenantID:       opts.TenantID,
		CreatedAt:      now,
		LastAccessedAt: now,
		UserAgent:      opts.UserAgent,
		IPAddress:      opts.IPAddress,
		Metadata:       opts.Metadata,
	}

	if err := kv.SetJSON(ctx, s.kv, sessionKey(id), sess, s.ttl); err != nil {
		return nil, fmt.Errorf("session: persist: %w", err)
	}

	indexKey := userIndexKey(opts.UserID)
	if err := s.kv.SAdd(ctx, indexKey, id); err != nil {
		s.logger.Warn("session index update failed", zap.String("user_id", opts.UserID), zap.Error(err))
	} else if _, err := s.kv.Expire(ctx, indexKey, s.ttl); err != nil {
		s.logger.Warn("session index expire failed", zap.String("user_id", opts.UserID), zap.Error(err))
	}

	if err := s.enforceCap(ctx, opts.UserID); err != nil {
		s.logger.Warn("session cap enforcement failed", zap.String("user_id", opts.UserID), zap.Error(err))
	}

	return sess, nil
}

// Get fetches a session and refreshes its sliding expiration. Returns
// (nil, nil) on a clean miss; store failures propagate so callers never
// authenticate against an unreachable backend.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	sess, err := s.peek(ctx, sessionID)
	if err != nil || sess == nil {
		return sess, err
	}

	sess.LastAccessedAt = s.now()
	if err := kv.SetJSON(ctx, s.kv, sessionKey(sessionID), sess, s.ttl); err != nil {
		// The read already proved the session live; a failed refresh only
		// costs the slide, not the authentication.
		s.logger.Warn("session refresh failed",
			zap.String("session", truncateID(sessionID)), zap.Error(err))
	}
	return sess, nil
}

// Validate wraps Get and turns a miss into ErrSessionInvalid.
func (s *Store) Validate(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: lookup: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionInvalid
	}
	return sess, nil
}

// Destroy removes a session record and its index entry. Destroying a session
// that does not exist returns false, not an error.
func (s *Store) Destroy(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.peek(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	if err := s.kv.Del(ctx, sessionKey(sessionID)); err != nil {
		return false, fmt.Errorf("session: destroy: %w", err)
	}
	if err := s.kv.SRem(ctx, userIndexKey(sess.UserID), sessionID); err != nil {
		s.logger.Warn("session index removal failed",
			zap.String("session", truncateID(sessionID)), zap.Error(err))
	}
	return true, nil
}

// DestroyAll removes every session belonging to a user ("log out everywhere")
// and returns how many were destroyed.
func (s *Store) DestroyAll(ctx context.Context, userID string) (int, error) {
	indexKey := userIndexKey(userID)
	ids, err := s.kv.SMembers(ctx, indexKey)
	if err != nil {
		return 0, fmt.Errorf("session: enumerate: %w", err)
	}

	count := 0
	for _, id := range ids {
		if err := s.kv.Del(ctx, sessionKey(id)); err != nil {
			s.logger.Warn("session bulk destroy failed",
				zap.String("session", truncateID(id)), zap.Error(err))
			continue
		}
		count++
	}
	if err := s.kv.Del(ctx, indexKey); err != nil {
		s.logger.Warn("session index delete failed", zap.String("user_id", userID), zap.Error(err))
	}
	return count, nil
}

// List returns the session ids recorded for a user. The index may briefly
// reference expired records; ListDetailed filters those out.
func (s *Store) List(ctx context.Context, userID string) ([]string, error) {
	return s.kv.SMembers(ctx, userIndexKey(userID))
}

// ListDetailed returns the live sessions of a user, most recently accessed
// first. Index entries whose record has already expired are pruned on the way.
func (s *Store) ListDetailed(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.kv.SMembers(ctx, userIndexKey(userID))
	if err != nil {
		return nil, fmt.Errorf("session: enumerate: %w", err)
	}

	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.peek(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			// Record expired under the index; heal the skew.
			if err := s.kv.SRem(ctx, userIndexKey(userID), id); err != nil {
				s.logger.Warn("session index heal failed",
					zap.String("session", truncateID(id)), zap.Error(err))
			}
			continue
		}
		sessions = append(sessions, sess)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastAccessedAt.After(sessions[j].LastAccessedAt)
	})
	return sessions, nil
}

// Extend resets the session TTL without rewriting the record. seconds <= 0
// falls back to the configured window.
func (s *Store) Extend(ctx context.Context, sessionID string, seconds int) (bool, error) {
	ttl := s.ttl
	if seconds > 0 {
		ttl = time.Duration(seconds) * time.Second
	}
	return s.kv.Expire(ctx, sessionKey(sessionID), ttl)
}

// UpdateMetadata merges a patch into the session metadata, preserving the
// remaining TTL. Returns false when the session is gone.
func (s *Store) UpdateMetadata(ctx context.Context, sessionID string, patch map[string]interface{}) (bool, error) {
	sess, err := s.peek(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}

	if sess.Metadata == nil {
		sess.Metadata = make(map[string]interface{}, len(patch))
	}
	for k, v := range patch {
		sess.Metadata[k] = v
	}

	remaining, err := s.kv.TTL(ctx, sessionKey(sessionID))
	if err != nil || remaining <= 0 {
		remaining = s.ttl
	}
	if err := kv.SetJSON(ctx, s.kv, sessionKey(sessionID), sess, remaining); err != nil {
		return false, fmt.Errorf("session: persist metadata: %w", err)
	}
	return true, nil
}

// peek reads a session without touching LastAccessedAt or the TTL.
func (s *Store) peek(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	found, err := kv.GetJSON(ctx, s.kv, sessionKey(sessionID), &sess)
	if err != nil {
		return nil, fmt.Errorf("session: fetch: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &sess, nil
}

// enforceCap destroys the oldest-by-LastAccessedAt sessions above the per-user
// cap. Read-then-evict can race under concurrent creation for one user; the
// cap is a soft limit, not a security boundary.
func (s *Store) enforceCap(ctx context.Context, userID string) error {
	live, err := s.ListDetailed(ctx, userID)
	if err != nil {
		return err
	}
	if len(live) <= s.maxPerUser {
		return nil
	}

	// ListDetailed orders most-recent-first; the surplus tail is the oldest.
	for _, victim := range live[s.maxPerUser:] {
		if _, err := s.Destroy(ctx, victim.ID); err != nil {
			return err
		}
		s.logger.Info("session evicted over capacity",
			zap.String("user_id", userID),
			zap.String("session", truncateID(victim.ID)))
	}
	return nil
}

// newSessionID builds a timestamp-prefixed random id: sortable roughly by
// creation time, with 256 bits of entropy in the suffix.
func newSessionID(now time.Time) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), hex.EncodeToString(b)), nil
}

func sessionKey(id string) string       { return sessionKeyPrefix + id }
func userIndexKey(userID string) string { return userIndexPrefix + userID }

// truncateID keeps a short non-sensitive prefix for logs.
func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12] + "..."
}
