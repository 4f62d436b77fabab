package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"interview-planner/internal/rules"
)

const principalKey = "principal"

// Claims is the token payload: sub is the user id. role may be left out; the
// stored role of the user wins either way.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	JWTSecret string
	// StaticTokens entries are "token" (a coordinator) or "token:role:id".
	StaticTokens []string
}

// AuthMiddleware accepts HMAC-signed JWTs or static tokens and stores the
// caller's Principal on the context.
func AuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	static := make(map[string]Principal, len(cfg.StaticTokens))
	for _, entry := range cfg.StaticTokens {
		if tok, p, ok := parseStaticToken(entry); ok {
			static[tok] = p
		}
	}
	secret := []byte(strings.TrimSpace(cfg.JWTSecret))

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization", "code": "unauthorized"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format", "code": "unauthorized"})
			return
		}
		tokenStr := parts[1]

		if len(secret) > 0 {
			if p, err := parseJWT(tokenStr, secret); err == nil {
				c.Set(principalKey, p)
				c.Next()
				return
			}
		}

		if p, ok := static[tokenStr]; ok {
			c.Set(principalKey, p)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthorized"})
	}
}

func parseJWT(tokenStr string, secret []byte) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return secret, nil
	}, jwt.WithLeeway(5*time.Second))
	if err != nil {
		return Principal{}, err
	}
	role, ok := rules.RoleCandidate, true
	if claims.Role != "" {
		role, ok = rules.ParseRole(claims.Role)
	}
	if !ok || claims.Subject == "" {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}
	return Principal{ID: claims.Subject, Role: role, Email: claims.Email}, nil
}

func parseStaticToken(entry string) (string, Principal, bool) {
	fields := strings.Split(strings.TrimSpace(entry), ":")
	switch len(fields) {
	case 1:
		if fields[0] == "" {
			return "", Principal{}, false
		}
		return fields[0], Principal{ID: "static", Role: rules.RoleCoordinator, Static: true}, true
	case 3:
		role, ok := rules.ParseRole(fields[1])
		if !ok || fields[0] == "" || fields[2] == "" {
			return "", Principal{}, false
		}
		return fields[0], Principal{ID: fields[2], Role: role, Static: true}, true
	}
	return "", Principal{}, false
}

// principal returns the caller set by AuthMiddleware.
func principal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...rules.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization", "code": "unauthorized"})
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role " + string(p.Role) + " cannot access this resource", "code": "forbidden"})
	}
}
