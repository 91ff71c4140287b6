// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file verifies bearer tokens issued by the auth provider (HS256 JWTs
// signed with the project secret) and stores the caller's identity in the
// Gin context:
//
//   - "userID": the token subject ("sub")
//   - "role":   "role" claim, or app_metadata.role when present
//
// For local development a request without a token may name its user via
// X-User-ID when AuthOptions.AllowDevUser is set. Production configs leave it
// off.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// CtxKeyUserID is the Gin context key holding the authenticated user id.
	CtxKeyUserID = "userID"
	// CtxKeyRole is the Gin context key holding the caller's role.
	CtxKeyRole = "role"

	headerDevUser = "X-User-ID"
)

// AuthOptions configures Auth.
type AuthOptions struct {
	// Secret is the HS256 signing secret. Empty rejects every token.
	Secret string
	// Audience, when set, must appear in the token's "aud" claim.
	Audience string
	// AllowDevUser accepts X-User-ID on requests without a bearer token.
	AllowDevUser bool
	// DevRole is the role given to X-User-ID callers (default "authenticated").
	DevRole string
}

// Auth rejects requests without a valid bearer token with 401.
func Auth(opts AuthOptions) gin.HandlerFunc {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	parser := jwt.NewParser(parserOpts...)
	key := []byte(opts.Secret)
	devRole := opts.DevRole
	if devRole == "" {
		devRole = "authenticated"
	}

	return func(c *gin.Context) {
		raw, hasBearer := bearerToken(c.GetHeader("Authorization"))
		if !hasBearer {
			if uid := strings.TrimSpace(c.GetHeader(headerDevUser)); opts.AllowDevUser && uid != "" {
				setIdentity(c, uid, devRole)
				c.Next()
				return
			}
			Abort(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if len(key) == 0 {
			Abort(c, http.StatusUnauthorized, "unauthorized", "token verification not configured")
			return
		}

		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil })
		if err != nil {
			Abort(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		sub, _ := claims.GetSubject()
		if strings.TrimSpace(sub) == "" {
			Abort(c, http.StatusUnauthorized, "unauthorized", "token has no subject")
			return
		}
		setIdentity(c, sub, roleOf(claims))
		c.Next()
	}
}

// RequireRole allows only callers whose role equals role; others get 403.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxKeyRole) != role {
			Abort(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}

// setIdentity stores the caller and tags the request logger with it.
func setIdentity(c *gin.Context, userID, role string) {
	c.Set(CtxKeyUserID, userID)
	c.Set(CtxKeyRole, role)
	l := LoggerFrom(c).With().Str("user_id", userID).Logger()
	c.Set(loggerKey, &l)
}

func bearerToken(h string) (string, bool) {
	h = strings.TrimSpace(h)
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

// roleOf prefers app_metadata.role, where the provider stores custom roles,
// over the top-level "role" claim.
func roleOf(claims jwt.MapClaims) string {
	if md, ok := claims["app_metadata"].(map[string]any); ok {
		if r, ok := md["role"].(string); ok && r != "" {
			return r
		}
	}
	r, _ := claims["role"].(string)
	return r
}
