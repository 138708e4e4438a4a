package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-clinic-api/internal/model"
)

var (
	// ErrMalformedToken covers bad structure and bad signatures alike.
	ErrMalformedToken  = errors.New("malformed or invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrClaimNotPresent = errors.New("claim not present")
)

type Claims struct {
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	AccountID string `json:"accountId,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Patient   string `json:"patientId,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) RequireSubject() (string, error) {
	if c == nil || strings.TrimSpace(c.Subject) == "" {
		return "", fmt.Errorf("%w: sub", ErrClaimNotPresent)
	}
	return c.Subject, nil
}

func (c *Claims) RequireRole() (model.Role, error) {
	if c == nil || strings.TrimSpace(c.Role) == "" {
		return "", fmt.Errorf("%w: role", ErrClaimNotPresent)
	}

	role, err := model.ParseRole(c.Role)
	if err != nil {
		return "", ErrMalformedToken
	}

	return role, nil
}

func (c *Claims) RequireExpiration() (time.Time, error) {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: exp", ErrClaimNotPresent)
	}
	return c.ExpiresAt.Time, nil
}

func (c *Claims) RequirePatientID() (string, error) {
	if c == nil || c.Patient == "" {
		return "", fmt.Errorf("%w: patientId", ErrClaimNotPresent)
	}
	return c.Patient, nil
}

// ExtraClaims are the optional identity claims embedded next to sub and role.
type ExtraClaims struct {
	Name      string
	AccountID string
	Kind      model.AccountKind
	PatientID string
}

type TokenCodec struct {
	keys   *KeyPair
	issuer string
	now    func() time.Time
}

type CodecOption func(*TokenCodec)

func WithIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) {
		c.issuer = strings.TrimSpace(issuer)
	}
}

func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewTokenCodec(keys *KeyPair, opts ...CodecOption) (*TokenCodec, error) {
	if keys == nil || keys.Private == nil || keys.Public == nil {
		return nil, fmt.Errorf("%w: key pair is required", ErrInvalidKey)
	}

	codec := &TokenCodec{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(codec)
	}

	return codec, nil
}

// Issue signs a token for subject carrying exactly one role. A non-positive ttl
// yields an already expired token.
func (c *TokenCodec) Issue(subject string, role model.Role, extra ExtraClaims, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	if !role.Valid() {
		return "", fmt.Errorf("cannot issue token for role %q", role)
	}

	now := c.now()
	claims := Claims{
		Role:      role.Authority(),
		Name:      extra.Name,
		AccountID: extra.AccountID,
		Kind:      string(extra.Kind),
		Patient:   extra.PatientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = c.keys.KeyID

	signed, err := token.SignedString(c.keys.Private)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseClaims checks the signature and structure only; expiry is left to
// IsExpired so callers can tell the two failures apart.
func (c *TokenCodec) ParseClaims(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMalformedToken
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return c.keys.Public, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrMalformedToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrMalformedToken
	}

	if c.issuer != "" && claims.Issuer != c.issuer {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

func (c *TokenCodec) IsExpired(claims *Claims) bool {
	exp, err := claims.RequireExpiration()
	if err != nil {
		return true
	}
	return !c.now().Before(exp)
}

// ExtractSubject parses the token and returns its subject, reporting
// ErrTokenExpired for well-formed tokens past their expiry.
func (c *TokenCodec) ExtractSubject(tokenString string) (string, error) {
	claims, err := c.ParseClaims(tokenString)
	if err != nil {
		return "", err
	}
	if c.IsExpired(claims) {
		return "", ErrTokenExpired
	}
	return claims.RequireSubject()
}

// Validate is a strict match: same subject, same single role, not expired.
func (c *TokenCodec) Validate(tokenString string, expectedSubject string, expectedRole model.Role) bool {
	claims, err := c.ParseClaims(tokenString)
	if err != nil {
		return false
	}

	subject, err := claims.RequireSubject()
	if err != nil || subject != expectedSubject {
		return false
	}

	role, err := claims.RequireRole()
	if err != nil || role != expectedRole {
		return false
	}

	return !c.IsExpired(claims)
}
