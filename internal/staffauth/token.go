// Package staffauth issues and validates bearer tokens for the administrative surface.
package staffauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "registrar/pkg/domain-errors"
)

// Staff roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const audience = "registrar-admin"

// Claims are the staff token claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService handles staff token creation and validation.
type TokenService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewTokenService(signingKey, issuer string) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

// ValidRole reports whether role is one the admin surface understands.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

func (s *TokenService) Generate(subject, role string, expiresIn time.Duration) (string, error) {
	if subject == "" {
		return "", dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	if !ValidRole(role) {
		return "", dErrors.New(dErrors.CodeValidation, "role must be admin or staff")
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Subject == "" || !ValidRole(claims.Role) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
