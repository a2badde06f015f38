// Package crypto implements the capability set the Dunitrust engine consumes
// from the outside world, per spec.md §4.2: Ed25519 sign/verify, SHA-256
// content hashes, Base58 pubkey encoding, Base64 signature encoding, and
// Scrypt-derived keypairs. No other package reaches for a crypto primitive
// directly — everything funnels through here so the engine's signature
// verification stays constant-time and its KDF parameters stay centralized.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/scrypt"
)

const (
	// PublicKeySize is the length in bytes of a raw Ed25519 public key.
	PublicKeySize = ed25519.PublicKeySize
	// PrivateKeySize is the length in bytes of an expanded Ed25519 private key.
	PrivateKeySize = ed25519.PrivateKeySize
	// SignatureSize is the length in bytes of an Ed25519 signature.
	SignatureSize = ed25519.SignatureSize
	// HashSize is the length in bytes of a SHA-256 digest.
	HashSize = sha256.Size
)

var (
	ErrInvalidPublicKeySize = errors.New("crypto: invalid public key size")
	ErrInvalidSignatureSize = errors.New("crypto: invalid signature size")
	ErrInvalidBase58        = errors.New("crypto: invalid base58 pubkey encoding")
	ErrInvalidBase64        = errors.New("crypto: invalid base64 signature encoding")
)

// PublicKey is a 32-byte Ed25519 public key.
type PublicKey [PublicKeySize]byte

// PrivateKey is a 64-byte expanded Ed25519 private key (seed || pubkey).
type PrivateKey [PrivateKeySize]byte

// Signature is a 64-byte Ed25519 signature.
type Signature [SignatureSize]byte

// Hash is a 32-byte SHA-256 digest.
type Hash [HashSize]byte

// GenerateKeyPair creates a fresh random Ed25519 keypair using the system
// CSPRNG. Used for tests and for the "random" branch of key generation;
// production identities derive deterministically via KeyPairFromSeed.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return PublicKey{}, PrivateKey{}, err
	}
	var pk PublicKey
	var sk PrivateKey
	copy(pk[:], pub)
	copy(sk[:], priv)
	return pk, sk, nil
}

// Scrypt parameters from spec.md §4.2: N=4096, r=16, p=1, dkLen=32.
const (
	ScryptN     = 4096
	ScryptR     = 16
	ScryptP     = 1
	ScryptDKLen = 32
)

// KeyPairFromSeed derives a deterministic Ed25519 keypair from a
// (password, salt) pair via Scrypt(N=4096, r=16, p=1, dkLen=32), matching
// Duniter's "SCRYPT wallet" key derivation: the KDF output is used directly
// as the Ed25519 seed (NewKeyFromSeed expands it to the full 64-byte form).
func KeyPairFromSeed(password, salt []byte) (PublicKey, PrivateKey, error) {
	seed, err := scrypt.Key(password, salt, ScryptN, ScryptR, ScryptP, ScryptDKLen)
	if err != nil {
		return PublicKey{}, PrivateKey{}, err
	}
	if len(seed) != ed25519.SeedSize {
		return PublicKey{}, PrivateKey{}, errors.New("crypto: scrypt output does not match ed25519 seed size")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	var pk PublicKey
	var sk PrivateKey
	copy(pk[:], pub)
	copy(sk[:], priv)
	return pk, sk, nil
}

// Sign produces an Ed25519 signature over msg using sk.
func Sign(sk PrivateKey, msg []byte) Signature {
	raw := ed25519.Sign(ed25519.PrivateKey(sk[:]), msg)
	var sig Signature
	copy(sig[:], raw)
	return sig
}

// Verify reports whether sig is a valid Ed25519 signature over msg under pk.
// ed25519.Verify is constant-time with respect to the signature and message,
// satisfying spec.md §4.2's no-timing-side-channel assumption.
func Verify(pk PublicKey, msg []byte, sig Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), msg, sig[:])
}

// Sha256 computes the SHA-256 digest of data.
func Sha256(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// Base58Encode encodes a public key using the Bitcoin Base58 alphabet
// (excludes 0, O, I, l), matching spec.md §3's 43-44 char Pubkey form.
func Base58Encode(pk PublicKey) string {
	return base58.Encode(pk[:])
}

// Base58Decode parses a Base58-encoded public key, rejecting any decoding
// that does not yield exactly PublicKeySize bytes.
func Base58Decode(s string) (PublicKey, error) {
	raw := base58.Decode(s)
	if len(raw) != PublicKeySize {
		return PublicKey{}, ErrInvalidBase58
	}
	var pk PublicKey
	copy(pk[:], raw)
	return pk, nil
}

// Base64Encode encodes a signature using standard padded Base64, matching
// spec.md §3's 88-char (with '=' padding) Signature form.
func Base64Encode(sig Signature) string {
	return base64.StdEncoding.EncodeToString(sig[:])
}

// Base64Decode parses a standard Base64-encoded signature in any of the
// three documented padding forms (no trailing '=', one, or two).
func Base64Decode(s string) (Signature, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(s)
		if err != nil {
			return Signature{}, ErrInvalidBase64
		}
	}
	if len(raw) != SignatureSize {
		return Signature{}, ErrInvalidSignatureSize
	}
	var sig Signature
	copy(sig[:], raw)
	return sig, nil
}

// HexUpper renders a hash as the 64-char uppercase hex form spec.md §3
// mandates for block/content hashes.
func (h Hash) HexUpper() string {
	const hexits = "0123456789ABCDEF"
	out := make([]byte, HashSize*2)
	for i, b := range h {
		out[i*2] = hexits[b>>4]
		out[i*2+1] = hexits[b&0x0f]
	}
	return string(out)
}

// HashFromHex parses a 64-char uppercase (or lowercase) hex string into a
// Hash. Lowercase is tolerated on parse even though emission is uppercase,
// since spec.md fixes the *emitted* case but several upstream tools emit
// lowercase hex that still must round-trip on read.
func HashFromHex(s string) (Hash, error) {
	if len(s) != HashSize*2 {
		return Hash{}, errors.New("crypto: hash hex must be 64 characters")
	}
	var h Hash
	for i := 0; i < HashSize; i++ {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return Hash{}, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return Hash{}, err
		}
		h[i] = hi<<4 | lo
	}
	return h, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, errors.New("crypto: invalid hex digit")
	}
}
