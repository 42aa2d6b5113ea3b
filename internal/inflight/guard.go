package inflight

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/bher20/ebillmanager/pkg/errors"
)

// Guard admits at most one in-flight mutation per (session, entity) pair.
// Different sessions never block each other; their writes are last-write-wins.
type Guard interface {
	// Acquire marks the entity busy for the session in ctx. The returned release
	// func must be called once the mutation finished. A busy key yields a
	// CONFLICT error.
	Acquire(ctx context.Context, entity string) (release func(), err error)
}

type sessionKey struct{}

const anonymousSession = "anonymous"

// WithSession stores the caller's session identifier on ctx.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, strings.TrimSpace(sessionID))
}

// SessionFrom returns the session identifier carried by ctx.
func SessionFrom(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKey{}).(string); ok && v != "" {
		return v
	}
	return anonymousSession
}

// Entity builds the canonical entity key, e.g. Entity("zip_rate", 4) = "zip_rate:4".
func Entity(kind string, id any) string {
	return fmt.Sprintf("%s:%v", kind, id)
}

func key(ctx context.Context, entity string) string {
	return SessionFrom(ctx) + "|" + entity
}

func busy(entity string) error {
	return apperrors.New(apperrors.CodeConflict, "a change to "+entity+" is already in progress").
		WithDetails(map[string]string{"entity": entity})
}

// LocalGuard keeps busy flags in process memory.
type LocalGuard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewLocal() *LocalGuard {
	return &LocalGuard{busy: make(map[string]struct{})}
}

func (g *LocalGuard) Acquire(ctx context.Context, entity string) (func(), error) {
	k := key(ctx, entity)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.busy[k]; ok {
		return nil, busy(entity)
	}
	g.busy[k] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, k)
			g.mu.Unlock()
		})
	}, nil
}

// Noop admits every mutation.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (func(), error) { return func() {}, nil }
