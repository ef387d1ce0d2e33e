package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
)

// DefaultTokenTTL is the credential lifetime when none is configured
const DefaultTokenTTL = 30 * 24 * time.Hour

type Claims struct {
	UserID    string      `json:"id"`
	CompanyID string      `json:"companyId"`
	Role      domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret string
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if secret == "" {
		secret = "change-me-in-production"
	}
	if issuer == "" {
		issuer = "expensehub"
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}
}

// TTL returns how long issued tokens stay valid
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a token for the principal and returns it with its expiry
func (tm *TokenManager) Issue(p domain.Principal) (string, time.Time, error) {
	if p.UserID == "" || p.CompanyID == "" {
		return "", time.Time{}, fmt.Errorf("%w: user id and company id required", domain.ErrInternal)
	}
	if _, err := domain.ParseRole(string(p.Role)); err != nil {
		return "", time.Time{}, err
	}
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := Claims{
		UserID:    p.UserID,
		CompanyID: p.CompanyID,
		Role:      p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    tm.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(tm.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: sign token: %v", domain.ErrInternal, err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, expiry and issuer and resolves the principal
func (tm *TokenManager) Verify(tokenString string) (domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(tm.secret), nil
	},
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, fmt.Errorf("%w: token expired", domain.ErrUnauthenticated)
		}
		return domain.Principal{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Principal{}, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthenticated)
	}
	role, err := domain.ParseRole(string(claims.Role))
	if err != nil || claims.UserID == "" || claims.CompanyID == "" {
		return domain.Principal{}, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthenticated)
	}
	return domain.Principal{UserID: claims.UserID, CompanyID: claims.CompanyID, Role: role}, nil
}

// ExtractBearer pulls the token out of an Authorization header value
func ExtractBearer(authHeader string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(authHeader), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: not authorized, no token", domain.ErrUnauthenticated)
	}
	return strings.TrimSpace(parts[1]), nil
}
