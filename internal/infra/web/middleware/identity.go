package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	HeaderCallerRole     = "X-Caller-Role"
	HeaderCallerDriverID = "X-Caller-Driver-ID"

	RoleStaff  = "staff"
	RoleDriver = "driver"
)

// Caller is the identity asserted by the upstream auth proxy.
type Caller struct {
	Role     string
	DriverID string
}

func (c Caller) IsStaff() bool { return c.Role == RoleStaff }

// CanActAs reports whether the caller may act on behalf of driverID.
func (c Caller) CanActAs(driverID string) bool {
	return c.IsStaff() || (c.Role == RoleDriver && c.DriverID == driverID)
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// Identity trusts the caller headers; requests without a usable identity get 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := Caller{
			Role:     strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderCallerRole))),
			DriverID: strings.TrimSpace(r.Header.Get(HeaderCallerDriverID)),
		}
		switch {
		case c.Role == RoleStaff:
		case c.Role == RoleDriver && c.DriverID != "":
		default:
			http.Error(w, "missing or invalid caller identity", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), c)))
	})
}

// StaffOnly rejects driver callers with 403.
func StaffOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := CallerFrom(r.Context()); !ok || !c.IsStaff() {
			http.Error(w, "staff only", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
