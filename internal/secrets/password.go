// Package secrets hashes and checks the API password.
//
// Hashes use argon2id in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=1$<salt>$<key>
package secrets

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	timeCost   = 1
	memoryKiB  = 64 * 1024
	threads    = 1
	keyLen     = 32
	saltLen    = 16
	hashPrefix = "$argon2id$"
)

var ErrMalformedHash = errors.New("malformed argon2id hash")

var b64 = base64.RawStdEncoding

// Hash returns the encoded argon2id hash of password with a random salt.
func Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, timeCost, memoryKiB, threads, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryKiB, timeCost, threads, b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Verify reports whether candidate matches the encoded hash. The cost
// parameters are taken from the hash itself.
func Verify(encoded, candidate string) (bool, error) {
	parts := strings.Split(encoded, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}
	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil || t == 0 || p == 0 {
		return false, ErrMalformedHash
	}
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return false, ErrMalformedHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return false, ErrMalformedHash
	}
	got := argon2.IDKey([]byte(candidate), salt, t, m, p, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1, nil
}

// Password is the configured API credential: a plain password, an argon2id
// hash, or neither (auth disabled). The hash wins when both are set.
type Password struct {
	Plain string
	Hash  string
}

// Validate checks that a configured hash can be parsed.
func (p Password) Validate() error {
	if p.Hash == "" {
		return nil
	}
	if !strings.HasPrefix(p.Hash, hashPrefix) {
		return ErrMalformedHash
	}
	_, err := Verify(p.Hash, "")
	return err
}

// Verifier returns the check used by the auth middleware, or nil when no
// credential is configured.
func (p Password) Verifier() func(candidate string) bool {
	switch {
	case p.Hash != "":
		return func(c string) bool {
			ok, err := Verify(p.Hash, c)
			return err == nil && ok
		}
	case p.Plain != "":
		return func(c string) bool {
			return subtle.ConstantTimeCompare([]byte(c), []byte(p.Plain)) == 1
		}
	default:
		return nil
	}
}
