package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/wolfpackcloud/robot-gateway/internal/audit"
	"github.com/wolfpackcloud/robot-gateway/internal/model"
	"github.com/wolfpackcloud/robot-gateway/internal/repository"
)

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware verifies access tokens issued by the identity service and
// resolves them to user records. Token issuance happens elsewhere; this
// gateway only checks signatures and account state.
type AuthMiddleware struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
}

func NewAuthMiddleware(userRepo repository.UserRepository, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{userRepo: userRepo, jwtSecret: []byte(jwtSecret)}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractBearerToken(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		userID, err := m.verifyAccessToken(token)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		user, err := m.userRepo.FindByID(r.Context(), userID)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if user == nil || !user.IsActive {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure, UserID: userID})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Account is not active",
			})
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verifyAccessToken checks the HS256 signature and the access-token claims,
// returning the subject user id.
func (m *AuthMiddleware) verifyAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid claims")
	}

	tokenType, _ := claims["type"].(string)
	if tokenType != "access" {
		return "", fmt.Errorf("not an access token")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("missing subject")
	}

	return sub, nil
}

// ExtractBearerToken pulls the credential out of an Authorization header.
// Returns "" when the header is missing or not Bearer-shaped.
func ExtractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
