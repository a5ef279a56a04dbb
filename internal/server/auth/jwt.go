package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/keys"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTTL is used when Encode is called with a non-positive ttl.
	DefaultAccessTTL = 15 * time.Minute

	// DefaultClockSkew is the tolerance applied to iat and exp when a token
	// minted on another replica is verified.
	DefaultClockSkew = 30 * time.Second
)

var signingMethod = jwt.SigningMethodRS256

// Codec signs and verifies access tokens with the deployment key pair. It is
// immutable after construction and safe for concurrent use.
type Codec struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	defaultTTL time.Duration
	leeway     time.Duration
	now        func() time.Time
}

type Option func(*Codec)

// WithClockSkew sets the tolerated clock difference between the issuing and
// the verifying host. Negative values are treated as zero.
func WithClockSkew(d time.Duration) Option {
	return func(c *Codec) {
		if d < 0 {
			d = 0
		}
		c.leeway = d
	}
}

func NewCodec(pair *keys.KeyPair, defaultTTL time.Duration, opts ...Option) *Codec {
	if defaultTTL <= 0 {
		defaultTTL = DefaultAccessTTL
	}
	c := &Codec{
		privateKey: pair.PrivateKey,
		publicKey:  pair.PublicKey,
		defaultTTL: defaultTTL,
		leeway:     DefaultClockSkew,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode issues a signed access token. Timestamps have second precision, so
// Decode returns exactly what was encoded.
func (c *Codec) Encode(subject string, userID int64, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now().Truncate(time.Second)

	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Decode verifies signature, algorithm and lifetime and returns the claims.
// iat and exp are checked with the configured clock skew.
// Errors wrap exactly one of the common.ErrToken* sentinels.
func (c *Codec) Decode(token string) (*Claims, error) {
	if err := checkAlgorithm(token); err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.publicKey, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Subject == "" || claims.UserID <= 0 || claims.Role == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing required claim", common.ErrTokenMalformed)
	}
	return claims, nil
}

// checkAlgorithm reads the header before verification so that a token signed
// with another algorithm is reported as such rather than as a bad signature.
func checkAlgorithm(token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return fmt.Errorf("%w: want 3 segments, got %d", common.ErrTokenMalformed, len(parts))
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return fmt.Errorf("%w: header encoding: %v", common.ErrTokenMalformed, err)
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return fmt.Errorf("%w: header json: %v", common.ErrTokenMalformed, err)
	}
	if header.Alg != signingMethod.Alg() {
		return fmt.Errorf("%w: %q", common.ErrTokenAlgorithmMismatch, header.Alg)
	}
	return nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", common.ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", common.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", common.ErrTokenNotYetValid, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	}
}
