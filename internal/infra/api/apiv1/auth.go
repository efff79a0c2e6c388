package apiv1

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"petcare-billing/internal/domain"
)

// TokenAuth validates the identity provider's HS256 access tokens.
type TokenAuth struct {
	secret []byte
	issuer string
}

// NewTokenAuth returns nil when secret is empty, which disables the identity check.
func NewTokenAuth(secret, issuer string) *TokenAuth {
	if secret == "" {
		return nil
	}
	return &TokenAuth{secret: []byte(secret), issuer: issuer}
}

// Subject returns the token's sub claim.
func (a *TokenAuth) Subject(r *http.Request) (string, error) {
	tok, ok := bearer(r)
	if !ok {
		return "", fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// authorize checks that the caller acts on its own profile.
func (s *Server) authorize(r *http.Request, userID string) error {
	if s.auth == nil {
		return nil
	}
	sub, err := s.auth.Subject(r)
	if err != nil {
		return err
	}
	if sub != userID {
		return domain.ErrForbidden
	}
	return nil
}

// adminOnly guards ledger inspection with a static bearer API key.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			writeJSON(w, http.StatusForbidden, errorBody{Status: "error", Error: "forbidden"})
			return
		}
		tok, ok := bearer(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Status: "error", Error: "unauthorized"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(tok), []byte(s.apiKey)) != 1 {
			writeJSON(w, http.StatusForbidden, errorBody{Status: "error", Error: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}
