package swap

import "testing"

func TestGenerateSecretRoundTrip(t *testing.T) {
	secret, hashlock, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if !VerifySecret(secret[:], hashlock) {
		t.Fatalf("expected generated secret to verify against its commitment")
	}
}

func TestVerifySecretSingleBitFlip(t *testing.T) {
	secret, hashlock, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	mutated := make([]byte, len(secret))
	copy(mutated, secret[:])
	mutated[0] ^= 0x01
	if VerifySecret(mutated, hashlock) {
		t.Fatalf("expected mutated secret to fail verification")
	}
}

func TestVerifySecretMalformedInput(t *testing.T) {
	_, hashlock, err := GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	if VerifySecret(nil, hashlock) {
		t.Fatalf("expected nil secret to fail verification")
	}
	if VerifySecret([]byte{}, hashlock) {
		t.Fatalf("expected empty secret to fail verification")
	}
	oversized := make([]byte, 65)
	if VerifySecret(oversized, hashlock) {
		t.Fatalf("expected oversized secret to fail verification")
	}
}

func TestCommitmentOfDeterministic(t *testing.T) {
	preimage := []byte("the same preimage")
	if CommitmentOf(preimage) != CommitmentOf(preimage) {
		t.Fatalf("expected identical commitments for identical preimages")
	}
}
