package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"mesa-pos/internal/models"
)

type contextKey string

const staffKey contextKey = "staff"

// Claims carries the staff identity and branch scope issued at login.
type Claims struct {
	BranchID string `json:"branch_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Middleware verifies the bearer token and injects the staff context. The
// core trusts this context for authorization; there is no further
// permission logic below it.
func Middleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, fmt.Sprintf("invalid token: %v", err), http.StatusUnauthorized)
				return
			}
			if claims.BranchID == "" {
				http.Error(w, "token has no branch scope", http.StatusUnauthorized)
				return
			}

			staff := models.StaffContext{
				UserID:   claims.Subject,
				BranchID: claims.BranchID,
				Role:     claims.Role,
			}
			next.ServeHTTP(w, r.WithContext(WithStaff(r.Context(), staff)))
		})
	}
}

// WithStaff attaches a staff context; used by the middleware and by tests.
func WithStaff(ctx context.Context, staff models.StaffContext) context.Context {
	return context.WithValue(ctx, staffKey, staff)
}

// StaffFromContext extracts the acting staff identity.
func StaffFromContext(ctx context.Context) (models.StaffContext, bool) {
	staff, ok := ctx.Value(staffKey).(models.StaffContext)
	return staff, ok
}
