package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shivanand-hulikatti/ticket-inventory/internal/model"
)

// Roles recognised by the HTTP surface.
const (
	RoleAttendee  = "attendee"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

var errInvalidToken = errors.New("invalid token")

type userCtxKey struct{}

// Claims is the payload of an access token.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator constructs an Authenticator. An empty issuer accepts
// tokens from any issuer.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Issue signs a token for u that expires after ttl.
func (a *Authenticator) Issue(u model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates a token and returns the user it names.
func (a *Authenticator) Parse(token string) (model.User, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return model.User{}, err
	}
	if !parsed.Valid || claims.UserID == "" {
		return model.User{}, errInvalidToken
	}
	return model.User{ID: claims.UserID, Name: claims.Name, Email: claims.Email, Role: claims.Role}, nil
}

// Authenticate rejects requests without a valid bearer token and stores the
// current user in the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authorization header is required")
			return
		}
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(header, bearerPrefix) || len(header) == len(bearerPrefix) {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid authorization header format")
			return
		}

		u, err := a.Parse(header[len(bearerPrefix):])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "access token has expired")
				return
			}
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid access token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, u)))
	})
}

// RequireRole lets the request through only when the current user has one
// of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "user not authenticated")
				return
			}
			for _, role := range roles {
				if u.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, CodeForbidden, "insufficient permissions")
		})
	}
}

// CurrentUser returns the authenticated user of the request.
func CurrentUser(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(model.User)
	return u, ok
}
