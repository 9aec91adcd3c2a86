package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRecordName = "recs/record-name/v1"
	DomainProperties = "recs/properties/v1"
)

// hashBytesWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashBytesWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL for security
	h.Write(data)
	return h.Sum(nil)
}

// PropertiesHash computes a content-addressed key for a properties object.
// Two objects hash equal iff their canonical JSON is equal.
// Returns error if props cannot be canonically marshaled.
func PropertiesHash(props Properties) (string, error) {
	canonical, err := MarshalCanonical(props)
	if err != nil {
		return "", fmt.Errorf("PropertiesHash: failed to marshal: %w", err)
	}
	return hex.EncodeToString(hashBytesWithDomain(DomainProperties, canonical)), nil
}

// MustPropertiesHash is like PropertiesHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPropertiesHash(props Properties) string {
	h, err := PropertiesHash(props)
	if err != nil {
		panic(err)
	}
	return h
}
