package transport

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"governancekernel/kernel/ontology"
)

// DelegationClaims is the JWT claim set a Delegation is exported as, for
// carrying a capability grant across a process boundary (e.g. to a
// second kernel instance participating in replay verification). The
// HMAC-signed bearer-token shape is grounded on the teacher's
// gateway/middleware.Authenticator, generalized from request
// authorization to delegation export.
type DelegationClaims struct {
	jwt.RegisteredClaims
	Granter      string `json:"granter"`
	Grantee      string `json:"grantee"`
	Capability   string `json:"capability"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}

// ExportDelegation signs d as a bearer token using secret, an HMAC key
// shared out-of-band between the exporting and importing kernels.
func ExportDelegation(d *ontology.Delegation, secret []byte) (string, error) {
	claims := DelegationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID: d.ID,
		},
		Granter:      d.Granter,
		Grantee:      d.Grantee,
		Capability:   string(d.Capability),
		Jurisdiction: d.Jurisdiction,
	}
	if !d.ExpiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(logicalToWallClock(d.ExpiresAt))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("transport: sign delegation token: %w", err)
	}
	return signed, nil
}

// ImportDelegation parses and verifies a bearer token produced by
// ExportDelegation, returning the GrantInput-shaped fields the caller
// feeds into an authority.Engine.Grant call. The caller is responsible
// for supplying a fresh Signature/Timestamp since the delegation's
// original cryptographic provenance is not itself carried by the token.
func ImportDelegation(tokenString string, secret []byte) (*DelegationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DelegationClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("transport: unexpected delegation token signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("transport: parse delegation token: %w", err)
	}
	claims, ok := token.Claims.(*DelegationClaims)
	if !ok || !token.Valid {
		return nil, errors.New("transport: delegation token claims invalid")
	}
	return claims, nil
}

// logicalToWallClock approximates a LogicalTimestamp's physical component
// as Unix seconds, purely for the JWT "exp" claim's wall-clock semantics
// — the kernel's own guard pipeline always re-validates against its own
// logical clock regardless of what a token claims.
func logicalToWallClock(t ontology.LogicalTimestamp) time.Time {
	return time.Unix(int64(t.Physical), 0)
}
