package web

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/dukex/operion-marketplace/pkg/log"
	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Headers set by a trusted gateway when no JWT secret is configured.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

type userKey struct{}

var errMissingIdentity = errors.New("missing identity")

// IdentityClaims are the claims carried by marketplace bearer tokens. The user
// ID is the subject.
type IdentityClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity resolves the caller for every request and rejects anonymous ones
// with 401. With a secret, only HS256 bearer tokens are accepted; without one
// the gateway headers are trusted.
func Identity(secret []byte, validate *validator.Validate, logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		var (
			user *models.User
			err  error
		)

		if len(secret) > 0 {
			user, err = userFromToken(c.Get(fiber.HeaderAuthorization), secret)
		} else {
			user = userFromHeaders(c)
		}

		if err == nil {
			err = validate.Struct(user)
		}

		if err != nil {
			logger.DebugContext(c.Context(), "Rejected request without valid identity", "path", c.Path(), "error", err)

			return unauthorized(c, "a valid identity is required")
		}

		c.Locals(userKey{}, user)
		c.SetContext(log.WithLogger(c.Context(), logger.With("method", c.Method(), "path", c.Path())))

		return c.Next()
	}
}

func userFromHeaders(c fiber.Ctx) *models.User {
	return &models.User{
		ID:    strings.TrimSpace(c.Get(HeaderUserID)),
		Email: strings.TrimSpace(c.Get(HeaderUserEmail)),
		Role:  globalRole(c.Get(HeaderUserRole)),
	}
}

func userFromToken(header string, secret []byte) (*models.User, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errMissingIdentity
	}

	claims := &IdentityClaims{}

	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  globalRole(claims.Role),
	}, nil
}

// globalRole accepts both "admin" and "global:admin". Unknown roles are members.
func globalRole(raw string) models.GlobalRole {
	role := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(role, "global:") {
		role = "global:" + role
	}

	switch models.GlobalRole(role) {
	case models.GlobalRoleOwner, models.GlobalRoleAdmin:
		return models.GlobalRole(role)
	default:
		return models.GlobalRoleMember
	}
}

// CurrentUser returns the caller resolved by Identity.
func CurrentUser(c fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(userKey{}).(*models.User)

	return user, ok
}
