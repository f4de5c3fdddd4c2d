package services

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token service error constants
var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenInvalid      = errors.New("invalid token")
	ErrSigningNotAllowed = errors.New("token signing key not configured")
)

// Roles carried in access tokens
const (
	RoleCarrier = "carrier"
	RoleAdmin   = "admin"
)

// TokenService validates access tokens issued by the identity provider.
// GenerateToken exists for operators and tests; the marketplace does not log users in itself.
type TokenService interface {
	GenerateToken(subject, role string) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims in an access token
type TokenClaims struct {
	Subject   string    `json:"sub"`
	Role      string    `json:"role"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsAdmin reports whether the token grants administrative access
func (c *TokenClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenServiceImpl implements TokenService
type TokenServiceImpl struct {
	accessTokenTTL time.Duration
	signingMethod  jwt.SigningMethod
	privateKey     *rsa.PrivateKey
	publicKey      *rsa.PublicKey
	secretKey      []byte
	useRSAKeys     bool
	issuer         string
	audience       string
}

// NewTokenService creates a token service. With RSA keys the private key is optional,
// in which case the service only verifies.
func NewTokenService(accessTokenTTL time.Duration, issuer, audience string, useRSAKeys bool, privateKeyPEM, publicKeyPEM, secretKey string) (TokenService, error) {
	s := &TokenServiceImpl{
		accessTokenTTL: accessTokenTTL,
		useRSAKeys:     useRSAKeys,
		issuer:         issuer,
		audience:       audience,
	}

	if useRSAKeys {
		privateKey, publicKey, err := parseRSAKeys(privateKeyPEM, publicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA keys: %w", err)
		}
		s.privateKey = privateKey
		s.publicKey = publicKey
		s.signingMethod = jwt.SigningMethodRS256
	} else {
		if secretKey == "" {
			return nil, fmt.Errorf("secret key is required when not using RSA keys")
		}
		s.secretKey = []byte(secretKey)
		s.signingMethod = jwt.SigningMethodHS256
	}

	return s, nil
}

func parseRSAKeys(privateKeyPEM, publicKeyPEM string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if publicKeyPEM == "" {
		return nil, nil, fmt.Errorf("public key is required")
	}

	var privateKey *rsa.PrivateKey
	if privateKeyPEM != "" {
		privateKeyBlock, _ := pem.Decode([]byte(privateKeyPEM))
		if privateKeyBlock == nil {
			return nil, nil, fmt.Errorf("failed to decode private key")
		}
		key, err := x509.ParsePKCS1PrivateKey(privateKeyBlock.Bytes)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		privateKey = key
	}

	publicKeyBlock, _ := pem.Decode([]byte(publicKeyPEM))
	if publicKeyBlock == nil {
		return nil, nil, fmt.Errorf("failed to decode public key")
	}
	publicKey, err := x509.ParsePKIXPublicKey(publicKeyBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("public key is not RSA")
	}

	return privateKey, rsaPublicKey, nil
}

// GenerateToken signs an access token for subject with the given role
func (s *TokenServiceImpl) GenerateToken(subject, role string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	if role != RoleCarrier && role != RoleAdmin {
		return "", fmt.Errorf("unknown role %q", role)
	}

	now := time.Now().UTC()
	claims := accessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
		},
	}
	if s.issuer != "" {
		claims.Issuer = s.issuer
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	token := jwt.NewWithClaims(s.signingMethod, claims)
	if s.useRSAKeys {
		if s.privateKey == nil {
			return "", ErrSigningNotAllowed
		}
		return token.SignedString(s.privateKey)
	}
	return token.SignedString(s.secretKey)
}

// ValidateToken verifies signature, expiry, issuer and audience and returns the claims
func (s *TokenServiceImpl) ValidateToken(token string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if s.useRSAKeys {
			return s.publicKey, nil
		}
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	role := claims.Role
	if role == "" {
		role = RoleCarrier
	}

	out := &TokenClaims{
		Subject: claims.Subject,
		Role:    role,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
