package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFilter = "sieve/filter/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FilterHash computes the content address of a filter scoped to an entity.
// Equal hashes imply identical filter trees, so compiled output may be reused.
func FilterHash(entity string, filter IRValue) (string, error) {
	obj := IRObject{
		{Key: "entity", Value: IRString(entity)},
		{Key: "filter", Value: filter},
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("FilterHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainFilter, canonical), nil
}
