package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidDeviceToken covers every device token rejection: bad
// signature, expiry, wrong chain, malformed claims.
var ErrInvalidDeviceToken = errors.New("invalid device token")

// RoleReadingSubmitter is the role a device token must carry to submit
// biometric readings.
const RoleReadingSubmitter = "reading-submitter"

// DeviceClaims is the attestation a biometric capture device presents with
// each reading submission. Subject carries the device ID.
type DeviceClaims struct {
	ChainID string   `json:"chainID"`
	Roles   []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the device was issued the given role.
func (c *DeviceClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DeviceVerifier validates device attestation tokens against the issuer's
// key set. A non-empty ChainID pins tokens to this chain.
type DeviceVerifier struct {
	KeyProvider KeyProvider
	ChainID     string
}

// VerifyDeviceToken parses and validates a token, returning its claims.
// The signing key is selected by the token's kid header.
func (v *DeviceVerifier) VerifyDeviceToken(tokenString string) (*DeviceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DeviceClaims{}, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return v.KeyProvider.GetPublicKey(kid)
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDeviceToken, err)
	}
	claims, ok := token.Claims.(*DeviceClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidDeviceToken
	}
	if v.ChainID != "" && claims.ChainID != v.ChainID {
		return nil, fmt.Errorf("%w: token issued for chain %q", ErrInvalidDeviceToken, claims.ChainID)
	}
	return claims, nil
}
