package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	secretSize         = 32
	opaqueTokenRawSize = 16 + secretSize
)

// NewID returns a random 128-bit identifier in canonical UUID form. Session
// ids and verification record ids share this format.
func NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewSecret returns 32 bytes of cryptographically random secret material.
func NewSecret() ([secretSize]byte, error) {
	var secret [secretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashSecret is the storage form of a secret: records hold only the SHA-256
// digest, never the raw material.
func HashSecret(secret [secretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// HashString hashes arbitrary caller-supplied material (numeric codes).
func HashString(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

// EncodeOpaqueToken packs a record id and its secret into a single
// base64url string handed to the end user. The id half locates the record,
// the secret half proves possession.
func EncodeOpaqueToken(id string, secret [secretSize]byte) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", err
	}

	var raw [opaqueTokenRawSize]byte
	copy(raw[:16], parsed[:])
	copy(raw[16:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeOpaqueToken is the inverse of [EncodeOpaqueToken].
func DecodeOpaqueToken(tok string) (string, [secretSize]byte, error) {
	var secret [secretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != opaqueTokenRawSize {
		return "", secret, errors.New("invalid opaque token size")
	}

	var id uuid.UUID
	copy(id[:], raw[:16])
	copy(secret[:], raw[16:])

	return id.String(), secret, nil
}

// NewCode generates a numeric one-time code of the given length, each digit
// drawn independently from crypto/rand.
func NewCode(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}
