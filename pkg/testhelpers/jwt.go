// Package testhelpers provides utilities for testing archestra components.
package testhelpers

import (
	"encoding/base64"
	"fmt"
)

// GenerateTestJWT creates a test JWT token for use when verification is
// disabled. The token has a valid structure but no signature (alg: none).
func GenerateTestJWT(sub, orgID, email string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s"`, sub)
	if orgID != "" {
		payload += fmt.Sprintf(`,"oid":"%s"`, orgID)
	}
	if email != "" {
		payload += fmt.Sprintf(`,"email":"%s"`, email)
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns the token with "Bearer " prefix for the
// Authorization header.
func GenerateTestJWTWithBearer(sub, orgID, email string) string {
	return "Bearer " + GenerateTestJWT(sub, orgID, email)
}
