package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// bucketLen is the number of hex characters kept from the public key digest.
// 8 hex chars (32 bits) is short enough for topic names and collision-resistant
// enough over the expected population of concurrent requesters; collisions are
// an accepted tradeoff of the protocol, not an error condition.
const bucketLen = 8

// Identity is a fresh per-session keypair. It is never persisted: a restart
// produces a new identity, a new bucket, and therefore a new response topic.
type Identity struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// New generates a fresh ed25519 identity.
func New() (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	return &Identity{pub: pub, priv: priv}, nil
}

// PublicKey returns the raw public key bytes.
func (id *Identity) PublicKey() []byte {
	return id.pub
}

// PublicKeyHex returns the hex-encoded public key, used as the solver
// field in quote responses.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.pub)
}

// Bucket returns the session's correlation bucket.
func (id *Identity) Bucket() string {
	return BucketOf(id.pub)
}

// BucketOf derives the correlation bucket for a public key: the first 8 hex
// characters of its SHA3-256 digest. It is a pure function of the key, so the
// requester and any later derivation agree on the listening topic.
func BucketOf(publicKey []byte) string {
	sum := sha3.Sum256(publicKey)
	return hex.EncodeToString(sum[:])[:bucketLen]
}
