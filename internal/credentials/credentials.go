// Package credentials derives and verifies password digests.
//
// New credentials are argon2id digests over the password and a per-user
// random salt. Records imported from the previous backend carry bcrypt hashes
// with an embedded salt; they still verify and are reported by NeedsRehash so
// callers can upgrade them after a successful login.
package credentials

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SaltLength is the size in bytes of generated salts.
	SaltLength = 16
	// DigestLength is the size in bytes of argon2id digests.
	DigestLength = 32

	SchemeArgon2ID = "argon2id"
	SchemeBcrypt   = "bcrypt"
)

var (
	// ErrMalformedSalt indicates a stored or supplied salt has the wrong shape.
	ErrMalformedSalt = errors.New("credentials: malformed salt")
	// ErrMalformedDigest indicates a stored digest has the wrong shape or an unknown scheme.
	ErrMalformedDigest = errors.New("credentials: malformed digest")
)

// Params tunes the argon2id cost.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// DefaultParams are the recommended interactive-login costs.
var DefaultParams = Params{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}

// Record is the credential material persisted alongside a user.
type Record struct {
	Scheme string
	Salt   []byte
	Digest []byte
}

// Hasher generates salts and derives and verifies digests. It is safe for
// concurrent use.
type Hasher struct {
	params Params
	random io.Reader
}

// NewHasher returns a Hasher using the provided argon2id parameters. Zero
// fields fall back to DefaultParams.
func NewHasher(params Params) *Hasher {
	if params.Time == 0 {
		params.Time = DefaultParams.Time
	}
	if params.MemoryKiB == 0 {
		params.MemoryKiB = DefaultParams.MemoryKiB
	}
	if params.Threads == 0 {
		params.Threads = DefaultParams.Threads
	}
	return &Hasher{params: params, random: rand.Reader}
}

// GenerateSalt returns SaltLength bytes from the system CSPRNG.
func (h *Hasher) GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := io.ReadFull(h.random, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Hash derives the argon2id digest for password and salt.
func (h *Hasher) Hash(password, salt []byte) ([]byte, error) {
	if len(salt) != SaltLength {
		return nil, ErrMalformedSalt
	}
	return argon2.IDKey(password, salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, DigestLength), nil
}

// Verify recomputes the digest for presented and compares it with expected in
// constant time. An empty presented password never matches. Only a malformed
// salt or digest produces an error.
func (h *Hasher) Verify(presented, salt, expected []byte) (bool, error) {
	if len(salt) != SaltLength {
		return false, ErrMalformedSalt
	}
	if len(expected) != DigestLength {
		return false, ErrMalformedDigest
	}
	if len(presented) == 0 {
		return false, nil
	}

	digest, err := h.Hash(presented, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(digest, expected) == 1, nil
}

// NewRecord generates a fresh salt and digest for password.
func (h *Hasher) NewRecord(password []byte) (Record, error) {
	salt, err := h.GenerateSalt()
	if err != nil {
		return Record{}, err
	}
	digest, err := h.Hash(password, salt)
	if err != nil {
		return Record{}, err
	}
	return Record{Scheme: SchemeArgon2ID, Salt: salt, Digest: digest}, nil
}

// Check verifies presented against a stored record of any supported scheme.
func (h *Hasher) Check(presented []byte, record Record) (bool, error) {
	switch record.Scheme {
	case SchemeArgon2ID, "":
		return h.Verify(presented, record.Salt, record.Digest)
	case SchemeBcrypt:
		if len(record.Digest) == 0 {
			return false, ErrMalformedDigest
		}
		if len(presented) == 0 {
			return false, nil
		}
		err := bcrypt.CompareHashAndPassword(record.Digest, presented)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", ErrMalformedDigest, err)
		}
	default:
		return false, fmt.Errorf("%w: unknown scheme %q", ErrMalformedDigest, record.Scheme)
	}
}

// NeedsRehash reports whether record should be replaced by an argon2id record.
func (h *Hasher) NeedsRehash(record Record) bool {
	return record.Scheme != SchemeArgon2ID
}
