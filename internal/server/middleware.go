package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sirupsen/logrus"
)

// Context key types to avoid collisions
type contextKey string

const contextKeyStaffID contextKey = "staff_id"

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Service) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.statusCode,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("http request")
	})
}

// RequireStaff verifies the bearer token against the external identity
// provider's JWKS. The core performs no credential checks of its own; it
// only trusts tokens the provider issued.
func (s *Service) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.respondJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Kind: "unauthorized", Message: "missing bearer token"}})
			return
		}
		accessToken := strings.TrimPrefix(header, "Bearer ")

		set, err := s.jwksCache.Lookup(r.Context(), s.jwksURL)
		if err != nil {
			s.logger.WithError(err).Error("failed to fetch JWKS")
			s.respondJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Kind: "unauthorized", Message: "unable to verify token"}})
			return
		}

		token, err := jwt.Parse(
			[]byte(accessToken),
			jwt.WithKeySet(set),
			jwt.WithValidate(true),
		)
		if err != nil {
			s.logger.WithError(err).Debug("failed to parse JWT")
			s.respondJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Kind: "unauthorized", Message: "invalid bearer token"}})
			return
		}

		staffID, ok := token.Subject()
		if !ok || staffID == "" {
			s.respondJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Kind: "unauthorized", Message: "token has no subject"}})
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyStaffID, staffID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) StripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path != "/" && strings.HasSuffix(path, "/") {
			newPath := strings.TrimSuffix(path, "/")
			newURL := *r.URL
			newURL.Path = newPath

			http.Redirect(w, r, newURL.String(), http.StatusMovedPermanently)
			return
		}

		next.ServeHTTP(w, r)
	})
}
