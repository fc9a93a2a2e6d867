package middleware

import (
	"crypto/rsa"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opsdesk/storeops/internal"
	"github.com/opsdesk/storeops/pkg/logger"
)

// ActorClaims are the claims the upstream authentication service signs into
// the actor token. This service verifies and consumes them, it never issues
// them.
type ActorClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type ActorVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

func NewActorVerifier(publicKey *rsa.PublicKey, issuer string) *ActorVerifier {
	return &ActorVerifier{publicKey: publicKey, issuer: issuer}
}

func (v *ActorVerifier) Verify(tokenString string) (*internal.Actor, error) {
	var claims ActorClaims
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, internal.NewUnauthorizedError("invalid actor token", internal.ErrCodeInvalidActorToken).WithCause(err)
	}
	if claims.UserID == 0 || claims.Role == "" {
		return nil, internal.ErrInvalidToken
	}

	return &internal.Actor{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}

// ActorContext resolves the verified actor from the Authorization header and
// stores it in the request context. Requests without a valid actor token are
// rejected before any handler runs.
func ActorContext(verifier *ActorVerifier, lg *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearer(r)
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			actor, err := verifier.Verify(tokenString)
			if err != nil {
				lg.WarnContext(r.Context(), "actor token rejected", "error", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := internal.ContextWithActor(r.Context(), actor)
			ctx = logger.With(ctx, "actor_id", actor.ID, "actor_role", actor.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
