package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

const (
	contextClaimsKey = "claims"
	tokenQueryParam  = "token" // browsers cannot set headers on websocket upgrades
	bearerPrefix     = "Bearer "
)

// Claims represents the authorization claims transmitted via a JWT.
// CanEditTimetable is the capability granted by the authorization collaborator.
type Claims struct {
	jwt.RegisteredClaims
	SchoolID         string `json:"school_id"`
	Username         string `json:"username,omitempty"`
	Email            string `json:"email,omitempty"`
	CanEditTimetable bool   `json:"can_edit_timetable,omitempty"`
}

func NewClaims(id core.Identity, canEdit bool, issuer string, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SchoolID:         id.SchoolID,
		Username:         id.Username,
		Email:            id.Email,
		CanEditTimetable: canEdit,
	}
}

func (c Claims) Identity() core.Identity {
	return core.Identity{
		ID:       c.Subject,
		SchoolID: c.SchoolID,
		Username: c.Username,
		Email:    c.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(raw, secretKey string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func extractToken(ctx echo.Context) string {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) > len(bearerPrefix) && strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):])
	}
	return ctx.QueryParam(tokenQueryParam)
}

// jwtMiddleware authenticates requests with an HS256 bearer token.
func jwtMiddleware(secretKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			raw := extractToken(ctx)
			if raw == "" {
				return errJWTMissing
			}
			claims, err := parseToken(raw, secretKey)
			if err != nil {
				return errors.Wrap(errJWTInvalid, err.Error())
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}
