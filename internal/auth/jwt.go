package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// CheckoutClaims identifies a pending charge on the provider return URL.
type CheckoutClaims struct {
	PaymentRef string    `json:"payment_ref"`
	OrgID      uuid.UUID `json:"org_id"`
	Provider   string    `json:"provider"`
	jwt.RegisteredClaims
}

// CheckoutTokens signs and validates return-URL tokens so the return page cannot be pointed at another org's charge.
type CheckoutTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewCheckoutTokens creates a token service. A zero ttl means 24 hours.
func NewCheckoutTokens(secret string, ttl time.Duration) *CheckoutTokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CheckoutTokens{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate creates a token for the given charge. An empty paymentRef covers every pending charge of the org.
func (s *CheckoutTokens) Generate(provider, paymentRef string, orgID uuid.UUID) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrInvalidToken
	}
	now := time.Now()
	claims := CheckoutClaims{
		PaymentRef: paymentRef,
		OrgID:      orgID,
		Provider:   provider,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a token, returning claims or ErrInvalidToken.
func (s *CheckoutTokens) Validate(tokenString string) (*CheckoutClaims, error) {
	if len(s.secret) == 0 || tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &CheckoutClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*CheckoutClaims)
	if !ok || !token.Valid || claims.OrgID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
