// Package keystore persists a node's Ed25519 keypairs (spec.md §6: "a
// running node holds at most two keypairs, member and network") on disk
// as keypairs.json, matching spec.md's documented on-disk layout:
// {member: {pub, sec}?, network: {pub, sec}}.
package keystore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/dunitrust/dunitrust/crypto"
)

// FileName is the on-disk file name under the profile directory
// (spec.md §6 "On-disk layout").
const FileName = "keypairs.json"

// KeyPair is the JSON encoding of one Ed25519 keypair: Base58 pubkey,
// hex-encoded expanded private key. Duniter stores the secret key
// plaintext in keypairs.json rather than encrypting it at rest (the
// whole file is expected to live on a machine the operator already
// trusts) — this engine follows the same plaintext convention rather
// than layering go-ethereum's encrypted-V3 keystore format on top,
// since spec.md's grammar names exactly the two fields `pub`/`sec`.
type KeyPair struct {
	Pub string `json:"pub"`
	Sec string `json:"sec"`
}

// Keypairs is the root of keypairs.json. Member is nil until the node
// operator runs the identity-claiming flow; Network always exists once
// the profile directory has been initialized (spec.md §6: "network" is
// not optional).
type Keypairs struct {
	Member  *KeyPair `json:"member,omitempty"`
	Network KeyPair  `json:"network"`
}

var ErrNoNetworkKey = errors.New("keystore: keypairs.json has no network key")

// Encode renders a (pubkey, privkey) pair to its JSON form.
func Encode(pk crypto.PublicKey, sk crypto.PrivateKey) KeyPair {
	return KeyPair{Pub: crypto.Base58Encode(pk), Sec: hex.EncodeToString(sk[:])}
}

// Decode parses a KeyPair back into its raw forms.
func (k KeyPair) Decode() (crypto.PublicKey, crypto.PrivateKey, error) {
	pk, err := crypto.Base58Decode(k.Pub)
	if err != nil {
		return crypto.PublicKey{}, crypto.PrivateKey{}, err
	}
	raw, err := hex.DecodeString(k.Sec)
	if err != nil || len(raw) != crypto.PrivateKeySize {
		return crypto.PublicKey{}, crypto.PrivateKey{}, errors.New("keystore: malformed secret key hex")
	}
	var sk crypto.PrivateKey
	copy(sk[:], raw)
	return pk, sk, nil
}

// Load reads and parses keypairs.json from dir.
func Load(dir string) (*Keypairs, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	var kp Keypairs
	if err := json.Unmarshal(data, &kp); err != nil {
		return nil, err
	}
	if kp.Network.Pub == "" {
		return nil, ErrNoNetworkKey
	}
	return &kp, nil
}

// Save writes keypairs.json to dir atomically: the content lands in a
// temporary file in the same directory first, then is renamed into
// place, so a crash mid-write never leaves a half-written keypairs.json
// (the same temp-then-rename idiom the teacher's keystore uses for its
// own key files).
func Save(dir string, kp *Keypairs) error {
	const dirPerm = 0700
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	data, err := json.MarshalIndent(kp, "", "  ")
	if err != nil {
		return err
	}
	target := filepath.Join(dir, FileName)
	tmp, err := os.CreateTemp(dir, "."+FileName+".tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// NewNetworkKey generates a fresh random network keypair (spec.md §4.2:
// the network key has no identity meaning, so it is not derived from a
// passphrase — a random keypair is sufficient and avoids ever needing to
// prompt for one).
func NewNetworkKey() (KeyPair, error) {
	pk, sk, err := crypto.GenerateKeyPair()
	if err != nil {
		return KeyPair{}, err
	}
	return Encode(pk, sk), nil
}

// NewMemberKeyFromPassphrase derives a deterministic member keypair from
// (salt, password) via crypto.KeyPairFromSeed (spec.md §4.2: "Scrypt-derived
// keypair from passphrase"), the same salt/password pair the operator must
// re-supply on every future run to recover the same identity.
func NewMemberKeyFromPassphrase(salt, password string) (KeyPair, error) {
	pk, sk, err := crypto.KeyPairFromSeed([]byte(password), []byte(salt))
	if err != nil {
		return KeyPair{}, err
	}
	return Encode(pk, sk), nil
}
