package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "tradelink"

// TokenService issues and checks the bearer tokens that guard the HTTP API.
type TokenService struct {
	JWTSecret string
	Expiry    time.Duration
}

func NewTokenService(secret string, expiry time.Duration) *TokenService {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &TokenService{
		JWTSecret: secret,
		Expiry:    expiry,
	}
}

// Enabled reports whether a secret is configured. Without one the API is open.
func (a *TokenService) Enabled() bool {
	return a != nil && a.JWTSecret != ""
}

func (a *TokenService) GenerateToken(subject string) (string, error) {
	if !a.Enabled() {
		return "", errors.New("API_JWT_SECRET is not configured, cannot sign tokens")
	}
	if subject == "" {
		return "", errors.New("token subject must not be empty")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.Expiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

// ValidateToken returns the subject of a valid token.
func (a *TokenService) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())

	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("invalid token: 'sub' claim missing")
	}
	return claims.Subject, nil
}
