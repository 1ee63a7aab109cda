package primitives

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// KeyPair is a generated Ed25519 signing identity.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 keypair, analogous to the
// teacher's crypto.GeneratePrivateKey but over Ed25519 rather than
// secp256k1 — see DESIGN.md for why governance signing departs from the
// teacher's chain-account curve.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("primitives: generate keypair: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// Sign produces a signature over message using priv.
func Sign(priv ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(priv, message)
}

// VerifySignature reports whether sig is a valid Ed25519 signature over
// message under pub. Malformed keys or signatures fail closed (false, no
// panic).
func VerifySignature(message, sig, pub []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}
