package session

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTooManySessions is returned when creating a session would exceed the
// configured cap.
var ErrTooManySessions = errors.New("maximum sessions reached")

// Store is the keyed session store. The in-process map is the source of
// truth; when a Redis client is supplied, session metadata is mirrored there
// with a TTL for external observability, best-effort only.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	max int
	ttl time.Duration
	rdb *redis.Client
	now func() time.Time
}

type entry struct {
	// turn serializes turns on one session: slot merging and state
	// transitions are not commutative.
	turn sync.Mutex
	s    *Session
}

// Options configures a Store.
type Options struct {
	MaxSessions int
	Timeout     time.Duration // inactivity window before eviction
	RedisAddr   string        // empty disables the mirror
	RedisPass   string
	Now         func() time.Time // test hook, defaults to time.Now
}

// NewStore builds a store, connecting to Redis if an address is configured.
// An unreachable Redis is logged and ignored; the store works without it.
func NewStore(ctx context.Context, opts Options) *Store {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var rdb *redis.Client
	if opts.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPass,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Printf("session: redis unavailable, continuing without mirror: %v", err)
			rdb = nil
		}
	}

	return &Store{
		entries: make(map[string]*entry),
		max:     opts.MaxSessions,
		ttl:     opts.Timeout,
		rdb:     rdb,
		now:     opts.Now,
	}
}

// Acquire returns the session for id with its turn lock held, creating it on
// first use. The caller must invoke release exactly once when the turn is
// done; release also refreshes activity and the Redis mirror.
func (st *Store) Acquire(ctx context.Context, id string) (*Session, func(), error) {
	st.mu.Lock()
	e, ok := st.entries[id]
	if !ok {
		if len(st.entries) >= st.max {
			st.mu.Unlock()
			return nil, nil, ErrTooManySessions
		}
		e = &entry{s: newSession(id, st.now())}
		st.entries[id] = e
	}
	st.mu.Unlock()

	e.turn.Lock()
	release := func() {
		e.s.LastActivity = st.now()
		st.mirror(ctx, e.s)
		e.turn.Unlock()
	}
	return e.s, release, nil
}

// Peek returns a snapshot of the session without locking a turn, for status
// endpoints. The second result reports existence.
func (st *Store) Peek(id string) (Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	e, ok := st.entries[id]
	if !ok {
		return Session{}, false
	}
	return *e.s, true
}

// Reset removes the session unconditionally, reporting whether it existed.
func (st *Store) Reset(ctx context.Context, id string) bool {
	st.mu.Lock()
	_, ok := st.entries[id]
	delete(st.entries, id)
	st.mu.Unlock()

	if ok && st.rdb != nil {
		st.rdb.Del(ctx, "session:"+id)
		st.rdb.SRem(ctx, "active_sessions", id)
	}
	return ok
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}

// Sweep evicts sessions idle past the inactivity window. A session whose
// turn lock is held by an in-flight turn is skipped and picked up on a later
// sweep.
func (st *Store) Sweep(ctx context.Context) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	evicted := 0
	for id, e := range st.entries {
		if now.Sub(e.s.LastActivity) <= st.ttl {
			continue
		}
		if !e.turn.TryLock() {
			continue
		}
		e.turn.Unlock()
		delete(st.entries, id)
		evicted++

		if st.rdb != nil {
			st.rdb.Del(ctx, "session:"+id)
			st.rdb.SRem(ctx, "active_sessions", id)
		}
	}
	return evicted
}

// StartSweeper runs Sweep every minute until ctx is cancelled.
func (st *Store) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(ctx); n > 0 {
				log.Printf("session: swept %d inactive sessions", n)
			}
		}
	}
}

// Close releases the Redis connection, if any.
func (st *Store) Close() {
	if st.rdb != nil {
		st.rdb.Close()
	}
}

// mirror pushes session metadata to Redis with the store TTL.
func (st *Store) mirror(ctx context.Context, s *Session) {
	if st.rdb == nil {
		return
	}
	st.rdb.HSet(ctx, "session:"+s.ID, map[string]any{
		"intent":        string(s.Intent),
		"booking_ref":   s.BookingRef,
		"turns":         strconv.Itoa(s.Turns),
		"created_at":    s.CreatedAt.Format(time.RFC3339),
		"last_activity": s.LastActivity.Format(time.RFC3339),
	})
	st.rdb.SAdd(ctx, "active_sessions", s.ID)
	st.rdb.Expire(ctx, "session:"+s.ID, st.ttl)
}
