package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents the access token claims issued by the auth service.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64    `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Type     string   `json:"type"`
}

// Verifier validates RS256 access tokens against a public key.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewVerifier parses a PEM encoded RSA public key.
// An empty issuer disables the iss check.
func NewVerifier(publicKeyPEM []byte, issuer string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &Verifier{publicKey: key, issuer: issuer}, nil
}

// NewVerifierFromFile reads the PEM public key from path.
func NewVerifierFromFile(path, issuer string) (*Verifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return NewVerifier(data, issuer)
}

// Verify validates a token and returns its claims.
// The user id falls back to the subject claim when user_id is absent.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != "" && claims.Type != "access" {
		return nil, ErrInvalidToken
	}

	if claims.UserID == 0 {
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || id <= 0 {
			return nil, ErrInvalidToken
		}
		claims.UserID = id
	}

	return claims, nil
}

// Manager issues and verifies tokens with an in-process RSA key pair.
// Used for local development and tests where no auth service key is configured.
type Manager struct {
	*Verifier
	privateKey     *rsa.PrivateKey
	accessDuration time.Duration
}

// NewManager creates a manager with a freshly generated key pair.
func NewManager(accessDuration time.Duration, issuer string) (*Manager, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	return &Manager{
		Verifier:       &Verifier{publicKey: &privateKey.PublicKey, issuer: issuer},
		privateKey:     privateKey,
		accessDuration: accessDuration,
	}, nil
}

// Issue signs an access token for the given user.
func (m *Manager) Issue(userID int64, username string, roles []string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(m.accessDuration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID:   userID,
		Username: username,
		Roles:    roles,
		Type:     "access",
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}
