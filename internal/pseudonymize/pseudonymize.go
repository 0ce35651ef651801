// Package pseudonymize implements the optional one-way account_id
// transform applied to the detection log artefact.
package pseudonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrSaltRequired is returned when pseudonymisation is enabled but no
// salt was configured — spec §4.7 treats this as a fatal error rather
// than silently falling back to an unsalted hash.
var ErrSaltRequired = errors.New("pseudonymization salt is required when pseudonymization is enabled")

// Hash renders SHA256(salt || ":" || accountID) as 64 lowercase hex
// characters.
func Hash(salt, accountID string) (string, error) {
	if salt == "" {
		return "", ErrSaltRequired
	}
	sum := sha256.Sum256([]byte(salt + ":" + accountID))
	return hex.EncodeToString(sum[:]), nil
}
