package auth

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/user"
)

var (
	// errors
	ErrMissingToken = errors.New("authentication credentials were not provided")
	ErrForbidden    = errors.New("permission denied")

	bearerScheme = "bearer"
	quoteChars   = "\"'"
)

// IdentityFinder resolves the identity a token was issued to.
type IdentityFinder interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Guard gates requests on a valid bearer token and the role it carries.
type Guard struct {
	tokens *TokenService
	users  IdentityFinder
}

func NewGuard(tokens *TokenService, users IdentityFinder) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// Authenticate resolves the identity behind an Authorization header, whatever its role.
func (g *Guard) Authenticate(ctx context.Context, header string) (user.User, *Claims, error) {
	token, err := BearerToken(header)
	if err != nil {
		return user.User{}, nil, err
	}
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return user.User{}, nil, err
	}
	usr, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return user.User{}, nil, errors.Wrap(err, "finding user by ID")
	}
	return usr, claims, nil
}

// RequireRole resolves the identity behind an Authorization header and checks that its token role is one of roles.
// No roles means any role. The role check happens before the identity lookup.
func (g *Guard) RequireRole(ctx context.Context, header string, roles ...user.Role) (user.User, error) {
	token, err := BearerToken(header)
	if err != nil {
		return user.User{}, err
	}
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return user.User{}, err
	}
	if !hasAnyRole(claims.Role, roles) {
		return user.User{}, ErrForbidden
	}
	usr, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

// BearerToken extracts the token of a `Bearer <token>` Authorization header.
// Quote characters around the header or the token are ignored.
func BearerToken(header string) (string, error) {
	header = strings.Trim(strings.TrimSpace(header), quoteChars)
	parts := strings.Fields(header)
	if len(parts) != 2 || strings.ToLower(parts[0]) != bearerScheme {
		return "", ErrMissingToken
	}
	token := strings.Trim(parts[1], quoteChars)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

func hasAnyRole(role user.Role, roles []user.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
