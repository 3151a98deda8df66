package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the token claims the API understands. OrgID, when present,
// pins the caller to a single organization.
type Claims struct {
	OrgID string `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthConfig enables bearer token checks when Secret is set.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type claimsKey struct{}

func parseBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

func publicPath(p string) bool {
	switch p {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return strings.HasPrefix(p, "/v1/dictionary/")
}

// authJWT enforces Authorization: Bearer <HS256 JWT>. It returns nil when no secret is configured.
func authJWT(cfg AuthConfig) func(http.Handler) http.Handler {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := parseBearerToken(r)
			if !ok {
				writeErr(w, http.StatusUnauthorized, "authorization required", "unauthorized")
				return
			}
			claims := &Claims{}
			tok, err := parser.ParseWithClaims(raw, claims, keyFunc)
			if err != nil || !tok.Valid {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token has expired"
				}
				writeErr(w, http.StatusUnauthorized, msg, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// orgAllowed reports whether the authenticated caller may act on orgID.
// Requests without claims or without an org_id claim are unrestricted.
func orgAllowed(ctx context.Context, orgID uuid.UUID) bool {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	if !ok || c.OrgID == "" {
		return true
	}
	id, err := uuid.Parse(c.OrgID)
	return err == nil && id == orgID
}
