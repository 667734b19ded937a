package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"collabboard/internal/errs"

	"github.com/golang-jwt/jwt/v5"
)

// Identity: who is behind a connection, used to tag every event it sends
type Identity struct {
	ID    string `json:"userId"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Authenticator turns a bearer credential into an Identity.
// Errors are errs.ErrUnauthenticated, errs.ErrTokenExpired or errs.ErrInvalidCredential.
type Authenticator interface {
	Authenticate(credential string) (Identity, error)
}

// Claims: access token payload
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// JWTService: HS256 access tokens shared with the identity provider
type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue: signs an access token for the identity, valid for ttl (service default if zero)
func (s *JWTService) Issue(id Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: id.ID,
		Email:  id.Email,
		Name:   id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate: verifies signature and validity window
func (s *JWTService) Authenticate(credential string) (Identity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return Identity{}, errs.ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("%w: %v", errs.ErrTokenExpired, err)
		}
		return Identity{}, fmt.Errorf("%w: %v", errs.ErrInvalidCredential, err)
	}
	if !token.Valid || claims.UserID == "" {
		return Identity{}, errs.ErrInvalidCredential
	}

	return Identity{ID: claims.UserID, Name: claims.Name, Email: claims.Email}, nil
}

// CloseReason: text sent in the websocket close frame for an auth failure
func CloseReason(err error) string {
	switch {
	case errors.Is(err, errs.ErrUnauthenticated):
		return errs.ErrUnauthenticated.Error()
	case errors.Is(err, errs.ErrTokenExpired):
		return errs.ErrTokenExpired.Error()
	default:
		return errs.ErrInvalidCredential.Error()
	}
}
