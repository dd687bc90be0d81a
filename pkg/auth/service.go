package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrMissingOrgID         = errors.New("missing organization ID in token")
	ErrOrgIDMismatch        = errors.New("organization ID mismatch between token and URL")
)

// AuthService defines the interface for authentication operations.
// This abstraction enables clean separation between HTTP handling
// and authentication logic, making both easier to test.
type AuthService interface {
	// ValidateRequest extracts and validates a JWT from the request's
	// Authorization header ("Bearer" scheme).
	// Returns the validated claims, the raw token string, or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireOrgID validates that the claims contain an organization ID.
	RequireOrgID(claims *Claims) error

	// ValidateOrgIDMatch ensures the URL organization ID matches the token
	// organization ID. If urlOrgID is empty, validation is skipped.
	ValidateOrgIDMatch(claims *Claims, urlOrgID string) error
}

// authService implements AuthService.
type authService struct {
	jwksClient JWKSClientInterface
	logger     *zap.Logger
}

// NewAuthService creates a new AuthService with the given JWKS client and logger.
func NewAuthService(jwksClient JWKSClientInterface, logger *zap.Logger) AuthService {
	return &authService{
		jwksClient: jwksClient,
		logger:     logger,
	}
}

// ValidateRequest extracts and validates a JWT from the request.
func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		s.logger.Debug("No JWT found in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return nil, "", ErrMissingAuthorization
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		s.logger.Debug("Invalid Authorization header format",
			zap.String("path", r.URL.Path))
		return nil, "", ErrInvalidAuthFormat
	}

	claims, err := s.jwksClient.ValidateToken(parts[1])
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path))
		return nil, "", err
	}

	return claims, parts[1], nil
}

// RequireOrgID validates that the claims contain an organization ID.
func (s *authService) RequireOrgID(claims *Claims) error {
	if claims.OrgID == "" {
		return ErrMissingOrgID
	}
	return nil
}

// ValidateOrgIDMatch ensures the URL organization ID matches the token organization ID.
func (s *authService) ValidateOrgIDMatch(claims *Claims, urlOrgID string) error {
	if urlOrgID != "" && claims.OrgID != urlOrgID {
		s.logger.Warn("Organization ID mismatch",
			zap.String("url_org_id", urlOrgID),
			zap.String("token_org_id", claims.OrgID))
		return ErrOrgIDMismatch
	}
	return nil
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)
