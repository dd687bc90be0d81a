package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWKSClientInterface defines the interface for JWT token validation.
// This abstraction enables testing with mock implementations.
type JWKSClientInterface interface {
	// ValidateToken validates a JWT token string and returns the claims.
	ValidateToken(tokenString string) (*Claims, error)
	// Close releases any resources held by the client.
	Close()
}

// JWKSConfig contains configuration for the JWKS client.
type JWKSConfig struct {
	// EnableVerification controls whether JWT signatures are verified.
	// Set to false for development mode (parses tokens without verification).
	EnableVerification bool
	// JWKSEndpoints maps trusted issuer URLs to their JWKS endpoint URLs.
	JWKSEndpoints map[string]string
}

// rsaMethods are the signing algorithms accepted from the identity service.
var rsaMethods = []string{"RS256", "RS384", "RS512"}

// JWKSClient verifies JWT signatures against the key sets of trusted issuers.
// Tokens from any other issuer are rejected.
type JWKSClient struct {
	verify bool
	keys   map[string]keyfunc.Keyfunc
}

// NewJWKSClient builds the token validator. With verification enabled it
// eagerly fetches the key set of every trusted issuer, so a misconfigured or
// unreachable endpoint fails at startup rather than on the first request.
func NewJWKSClient(ctx context.Context, cfg *JWKSConfig) (*JWKSClient, error) {
	c := &JWKSClient{
		verify: cfg.EnableVerification,
		keys:   make(map[string]keyfunc.Keyfunc, len(cfg.JWKSEndpoints)),
	}

	if !cfg.EnableVerification {
		return c, nil
	}

	if len(cfg.JWKSEndpoints) == 0 {
		return nil, errors.New("verification enabled but no JWKS endpoints configured")
	}

	for issuer, jwksURL := range cfg.JWKSEndpoints {
		jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to load JWKS for issuer %s: %w", issuer, err)
		}
		c.keys[issuer] = jwks
	}

	return c, nil
}

// ValidateToken validates a JWT token and returns the claims. With
// verification disabled the token is parsed without a signature check.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	if !c.verify {
		return parseInsecure(tokenString)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, c.keyFor,
		jwt.WithValidMethods(rsaMethods))
	if err != nil {
		return nil, fmt.Errorf("token rejected: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token rejected")
	}

	return claims, nil
}

// keyFor resolves the verification key from the token's issuer claim.
func (c *JWKSClient) keyFor(token *jwt.Token) (any, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}

	jwks, ok := c.keys[claims.Issuer]
	if !ok {
		return nil, fmt.Errorf("issuer %q is not trusted", claims.Issuer)
	}

	return jwks.KeyfuncCtx(context.Background())(token)
}

// parseInsecure parses a JWT without verifying the signature. Development
// mode only; the org claim is still enforced downstream.
func parseInsecure(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("malformed token: %w", err)
	}
	return claims, nil
}

// Close releases any resources held by the client. keyfunc v3 needs no
// explicit cleanup.
func (c *JWKSClient) Close() {}

// Ensure JWKSClient implements JWKSClientInterface at compile time.
var _ JWKSClientInterface = (*JWKSClient)(nil)
