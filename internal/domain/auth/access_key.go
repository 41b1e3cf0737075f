package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrUnknownHashType is returned when a stored hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// argon2idParams defines OWASP minimum parameters for Argon2id.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashAccessKey returns an Argon2id hash of the console access key in PHC format:
// $argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
func HashAccessKey(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}

// IsAccessKeyHash reports whether s looks like a hash produced by HashAccessKey.
func IsAccessKeyHash(s string) bool {
	if !strings.HasPrefix(s, "$argon2id$") {
		return false
	}
	_, _, _, err := argon2id.DecodeHash(s)
	return err == nil
}

// VerifyAccessKey compares a raw key against a stored Argon2id hash.
func VerifyAccessKey(rawKey, storedHash string) (bool, error) {
	if !strings.HasPrefix(storedHash, "$argon2id$") {
		return false, ErrUnknownHashType
	}
	return safeArgon2idCompare(rawKey, storedHash)
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic recovery.
// The argon2 package panics on hashes with zero rounds or parallelism.
func safeArgon2idCompare(rawKey, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(rawKey, storedHash)
}
