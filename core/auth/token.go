package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	NowFunc = time.Now // mockable

	signingMethod = jwt.SigningMethodHS256

	// errors
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      user.Role `json:"role"`
	TokenType TokenType `json:"token_type"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenService issues and verifies signed bearer tokens.
type TokenService struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(conf *core.Config) *TokenService {
	return &TokenService{
		key:        []byte(conf.SecretKey),
		issuer:     conf.AppName,
		accessTTL:  conf.Auth.AccessTokenTTL,
		refreshTTL: conf.Auth.RefreshTokenTTL,
	}
}

// GetUserClaims builds the claim set of usr for the given token type.
func (ts *TokenService) GetUserClaims(usr user.User, typ TokenType) *Claims {
	now := NowFunc()
	ttl := ts.accessTTL
	if typ == RefreshToken {
		ttl = ts.refreshTTL
	}
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   usr.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    usr.ID,
		Username:  usr.Username,
		Role:      usr.Role,
		TokenType: typ,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (ts *TokenService) GenerateToken(claims *Claims) (string, error) {
	ss, err := jwt.NewWithClaims(signingMethod, claims).SignedString(ts.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Issue returns a fresh access/refresh token pair for usr.
func (ts *TokenService) Issue(usr user.User) (TokenPair, error) {
	access, err := ts.GenerateToken(ts.GetUserClaims(usr, AccessToken))
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := ts.GenerateToken(ts.GetUserClaims(usr, RefreshToken))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Verify checks an access token and returns its claims.
func (ts *TokenService) Verify(token string) (*Claims, error) {
	return ts.verify(token, AccessToken)
}

// VerifyRefresh checks a refresh token and returns its claims.
func (ts *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return ts.verify(token, RefreshToken)
}

// Refresh issues a new access token for usr, who must own the refresh claims.
func (ts *TokenService) Refresh(claims *Claims, usr user.User) (string, error) {
	if claims.TokenType != RefreshToken || claims.UserID != usr.ID {
		return "", ErrInvalidToken
	}
	return ts.GenerateToken(ts.GetUserClaims(usr, AccessToken))
}

func (ts *TokenService) verify(token string, typ TokenType) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (interface{}, error) { return ts.key, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(ts.issuer),
		jwt.WithTimeFunc(NowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if claims.TokenType != typ || claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
