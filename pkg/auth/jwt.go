package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// StaffClaims is what front-desk tokens carry. Tokens are issued by the
// clinic's identity service; this package only verifies them.
type StaffClaims struct {
	jwt.RegisteredClaims
	StaffID uuid.UUID `json:"staff_id"`
	Roles   []string  `json:"roles,omitempty"`
}

type JWTService interface {
	ValidateToken(token string) (*StaffClaims, error)
}

type hmacService struct {
	secret []byte
	issuer string
}

// NewJWTService verifies HS256 tokens signed with secret. A non-empty
// issuer must match the iss claim.
func NewJWTService(secret, issuer string) JWTService {
	return &hmacService{secret: []byte(secret), issuer: issuer}
}

func (s *hmacService) ValidateToken(tokenString string) (*StaffClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &StaffClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.StaffID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SignStaffToken mints a token for local tooling and tests.
func SignStaffToken(secret, issuer string, staffID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := StaffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   staffID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		StaffID: staffID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
