package crypto

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	pk, sk, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	msg := []byte("Version: 10\nType: Identity\n")
	sig := Sign(sk, msg)
	if !Verify(pk, msg, sig) {
		t.Fatal("expected signature to verify")
	}
	if Verify(pk, append(msg, '!'), sig) {
		t.Fatal("expected signature over tampered message to fail")
	}
}

func TestKeyPairFromSeedDeterministic(t *testing.T) {
	pk1, sk1, err := KeyPairFromSeed([]byte("hunter2"), []byte("alice"))
	if err != nil {
		t.Fatalf("KeyPairFromSeed: %v", err)
	}
	pk2, sk2, err := KeyPairFromSeed([]byte("hunter2"), []byte("alice"))
	if err != nil {
		t.Fatalf("KeyPairFromSeed: %v", err)
	}
	if pk1 != pk2 || sk1 != sk2 {
		t.Fatal("expected identical (password, salt) to derive identical keypair")
	}
	pk3, _, err := KeyPairFromSeed([]byte("hunter2"), []byte("bob"))
	if err != nil {
		t.Fatalf("KeyPairFromSeed: %v", err)
	}
	if pk1 == pk3 {
		t.Fatal("expected different salt to derive a different keypair")
	}
}

func TestBase58RoundTrip(t *testing.T) {
	pk, _, _ := GenerateKeyPair()
	s := Base58Encode(pk)
	if len(s) < 43 || len(s) > 44 {
		t.Fatalf("expected 43-44 char base58 pubkey, got %d: %s", len(s), s)
	}
	got, err := Base58Decode(s)
	if err != nil {
		t.Fatalf("Base58Decode: %v", err)
	}
	if got != pk {
		t.Fatal("base58 round-trip mismatch")
	}
}

func TestBase58RejectsWrongLength(t *testing.T) {
	if _, err := Base58Decode("1"); err == nil {
		t.Fatal("expected error decoding too-short base58")
	}
}

func TestBase64SignaturePaddingForms(t *testing.T) {
	_, sk, _ := GenerateKeyPair()
	sig := Sign(sk, []byte("msg"))
	padded := Base64Encode(sig)
	got, err := Base64Decode(padded)
	if err != nil || got != sig {
		t.Fatalf("Base64Decode(padded): %v", err)
	}
	// Strip padding to exercise the raw-encoding fallback path.
	unpadded := padded
	for len(unpadded) > 0 && unpadded[len(unpadded)-1] == '=' {
		unpadded = unpadded[:len(unpadded)-1]
	}
	got2, err := Base64Decode(unpadded)
	if err != nil || got2 != sig {
		t.Fatalf("Base64Decode(unpadded): %v", err)
	}
}

func TestHashHexUpperRoundTrip(t *testing.T) {
	h := Sha256([]byte("g1"))
	hex := h.HexUpper()
	if len(hex) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(hex))
	}
	got, err := HashFromHex(hex)
	if err != nil || got != h {
		t.Fatalf("HashFromHex round-trip failed: %v", err)
	}
}
