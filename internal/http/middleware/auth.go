package middleware

import (
	"io"
	"net/http"

	"parcel-dispatch/internal/auth"
	"parcel-dispatch/internal/logx"
)

// Authenticate resolves the bearer token into an actor and stores it in the
// request context. Requests without a valid token are answered with 401.
func Authenticate(verifier auth.Verifier, logger logx.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logx.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := verifier.Verify(r.Header.Get("Authorization"))
			if err != nil {
				logger.Debug("request rejected",
					logx.String("path", r.URL.Path),
					logx.Any("err", err),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="parcel-dispatch"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":"invalid or missing token","kind":"unauthorized"}`)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
		})
	}
}
