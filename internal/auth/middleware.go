package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/bher20/ebillmanager/internal/inflight"
	apperrors "github.com/bher20/ebillmanager/pkg/errors"
)

const (
	HeaderRole       = "X-User-Role"
	HeaderCustomerID = "X-Customer-ID"
	HeaderSessionID  = "X-Session-ID"
)

// Principal is the caller identity forwarded by the authenticating gateway.
type Principal struct {
	Role       string
	CustomerID uint
	SessionID  string
}

type contextKey string

const principalContextKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

func principalFromRequest(r *http.Request) Principal {
	p := Principal{
		Role:      strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole))),
		SessionID: strings.TrimSpace(r.Header.Get(HeaderSessionID)),
	}
	if id, err := strconv.ParseUint(strings.TrimSpace(r.Header.Get(HeaderCustomerID)), 10, 64); err == nil {
		p.CustomerID = uint(id)
	}
	return p
}

// Middleware stores the request principal and its session in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principalFromRequest(r)
		ctx := WithPrincipal(r.Context(), p)
		if p.SessionID != "" {
			ctx = inflight.WithSession(ctx, p.SessionID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorize checks the principal in ctx against obj/act.
func (s *Service) Authorize(ctx context.Context, obj, act string) error {
	p, ok := PrincipalFrom(ctx)
	if !ok || p.Role == "" {
		return apperrors.New(apperrors.CodeForbidden, "missing role")
	}
	if p.Role == RoleCustomer && p.CustomerID == 0 {
		return apperrors.New(apperrors.CodeForbidden, "customer role requires a customer id")
	}
	allowed, err := s.Enforce(p.Role, obj, act)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "policy evaluation failed")
	}
	if !allowed {
		return apperrors.New(apperrors.CodeForbidden, "forbidden").WithDetails(map[string]any{
			"role":   p.Role,
			"object": obj,
			"action": act,
		})
	}
	return nil
}

// CanAccessCustomer reports whether the principal may see the customer's data.
// Customers only see themselves; staff roles see everyone.
func CanAccessCustomer(ctx context.Context, customerID uint) bool {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return false
	}
	if p.Role != RoleCustomer {
		return true
	}
	return p.CustomerID == customerID
}

// Require wraps next with an Authorize check.
func (s *Service) Require(obj, act string, onErr ErrorWriter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.Authorize(r.Context(), obj, act); err != nil {
			onErr(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
