package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/querypilot/querypilot/internal/observability"
)

type contextKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}

// Middleware authenticates every request with an API key taken from
// X-API-Key or an "Authorization: Bearer" header. Failures get a 401 with
// the standard error envelope.
func Middleware(logger *slog.Logger, validator APIKeyValidator) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key, source := credentialFrom(r.Header)
			if key == "" {
				rejectRequest(w, r, "missing API key")
				return
			}

			identity, ok := validator.Validate(ctx, key)
			if !ok {
				logger.WarnContext(ctx, "authentication failed",
					slog.String("trace_id", observability.TraceIDFromContext(ctx)),
					slog.String("credential_source", source),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				rejectRequest(w, r, "invalid API key")
				return
			}

			logger.DebugContext(ctx, "authenticated",
				slog.String("trace_id", observability.TraceIDFromContext(ctx)),
				slog.String("subject", identity.Subject),
				slog.String("credential_source", source),
			)
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

// RequireRole reports an error when the request carries an identity without
// role. Requests without an identity pass; that only happens with auth off.
func RequireRole(r *http.Request, role string) error {
	identity, ok := IdentityFromContext(r.Context())
	if !ok || identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("subject %q is missing required role %q", identity.Subject, role)
}

// credentialFrom returns the presented key and the header it came from.
// X-API-Key wins when both are set. The bearer scheme matches case-insensitively.
func credentialFrom(header http.Header) (string, string) {
	if key := strings.TrimSpace(header.Get("X-API-Key")); key != "" {
		return key, "x-api-key"
	}
	scheme, token, found := strings.Cut(strings.TrimSpace(header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ""
	}
	return strings.TrimSpace(token), "bearer"
}

func rejectRequest(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="querypilot"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error_code": "UNAUTHORIZED",
		"message":    message,
		"retryable":  false,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}
