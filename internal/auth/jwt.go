package auth

import (
	"crypto/ecdsa"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/traceledger/internal/models"
)

// CallerHeader carries the caller identity when authentication is disabled.
const CallerHeader = "X-Caller-Identity"

type jwtVerifier struct {
	publicKey *ecdsa.PublicKey
}

func newJWTVerifierFromPEM(publicKeyPEM string) (*jwtVerifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("JWT public key not provided")
	}

	publicKey, err := jwt.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, err
	}

	return &jwtVerifier{publicKey: publicKey}, nil
}

// verify parses and validates a bearer token, returning its subject.
func (v *jwtVerifier) verify(tokenStr string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodES256 {
			return nil, errors.New("invalid signing method")
		}
		return v.publicKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid claims")
	}

	if claims.Subject == "" {
		return "", errors.New("missing subject")
	}

	return claims.Subject, nil
}

// NewJWTMiddleware returns an HTTP middleware that verifies ES256 bearer
// tokens and stores the token subject as the caller identity.
// Reads are unrestricted: /health and GET or HEAD requests without a token
// pass through with no caller. A token that is present must be valid.
func NewJWTMiddleware(publicKeyPEM string) (func(http.Handler) http.Handler, error) {
	v, err := newJWTVerifierFromPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			tokenStr := extractBearerToken(r)
			if tokenStr == "" && r.Header.Get("Authorization") == "" && isRead(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if tokenStr == "" {
				log.Warn().Str("method", r.Method).Msg("Missing bearer token")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			subject, err := v.verify(tokenStr)
			if err != nil {
				log.Debug().Err(err).Msg("JWT verification failed")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := WithCaller(r.Context(), models.Identity(subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

// HeaderIdentityMiddleware trusts the X-Caller-Identity header. It is meant
// for local development only.
func HeaderIdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(CallerHeader)); id != "" {
			r = r.WithContext(WithCaller(r.Context(), models.Identity(id)))
		}
		next.ServeHTTP(w, r)
	})
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
