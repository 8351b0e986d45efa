package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenCookie is the HTTP-only cookie carrying the signed session token.
const AccessTokenCookie = "accessToken"

const (
	TokenTTL    = 24 * time.Hour
	claimsKey   = "claims"
	claimUserID = "userId"
	claimEmail  = "email"
	claimRole   = "role"
)

var ErrInvalidToken = errors.New("invalid token")

// IssueToken signs claims with secret. The token expires after TokenTTL.
func IssueToken(secret []byte, claims models.Claims, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		claimUserID: claims.UserID,
		claimEmail:  claims.Email,
		claimRole:   string(claims.Role),
		"iat":       now.Unix(),
		"exp":       now.Add(TokenTTL).Unix(),
	})
	return token.SignedString(secret)
}

// ParseToken verifies the signature and expiry and returns the carried claims.
func ParseToken(secret []byte, raw string) (models.Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return models.Claims{}, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Claims{}, ErrInvalidToken
	}
	userID, _ := mc[claimUserID].(string)
	email, _ := mc[claimEmail].(string)
	role, _ := mc[claimRole].(string)
	if userID == "" {
		return models.Claims{}, ErrInvalidToken
	}
	return models.Claims{UserID: userID, Email: email, Role: models.Role(role)}, nil
}

// AuthMiddleware rejects requests without a valid access token cookie. An
// Authorization bearer header is accepted as a fallback for API clients.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(AccessTokenCookie)
		if err != nil || raw == "" {
			if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
				raw = token
			}
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthenticated user"})
			return
		}

		claims, err := ParseToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthenticated user"})
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Access denied"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the claims set by AuthMiddleware.
func CurrentUser(c *gin.Context) (models.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return models.Claims{}, false
	}
	claims, ok := v.(models.Claims)
	return claims, ok
}
