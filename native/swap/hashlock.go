package swap

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

// SecretSize is the byte length of generated swap secrets (256 bits of
// entropy, the size both chains' scripts expect behind OP_SHA256).
const SecretSize = 32

// Secret is the random preimage revealed to settle a claim. It is returned
// exactly once to the party that created the commitment and is never stored
// by the registry.
type Secret [SecretSize]byte

// GenerateSecret produces a cryptographically secure random secret and its
// sha256 commitment. sha256 is the one hash both the EVM contract and the
// UTXO script can verify natively, which is what lets either chain check the
// same preimage.
func GenerateSecret() (Secret, [32]byte, error) {
	var secret Secret
	if _, err := rand.Read(secret[:]); err != nil {
		return Secret{}, [32]byte{}, fmt.Errorf("swap: secret generation failed: %w", err)
	}
	return secret, CommitmentOf(secret[:]), nil
}

// CommitmentOf returns the sha256 commitment of the supplied preimage.
func CommitmentOf(secret []byte) [32]byte {
	return sha256.Sum256(secret)
}

// VerifySecret recomputes the commitment of the supplied preimage and
// compares it to the expected hashlock in constant time. Malformed or empty
// input is a verification failure, never a panic: a counterparty controls
// this value.
func VerifySecret(secret []byte, hashlock [32]byte) bool {
	if len(secret) == 0 || len(secret) > 64 {
		return false
	}
	digest := sha256.Sum256(secret)
	return subtle.ConstantTimeCompare(digest[:], hashlock[:]) == 1
}
