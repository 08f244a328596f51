package entity

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content hashes. The version suffix leaves room for a
// future field-set migration without colliding with old hashes.
const (
	domainDocument   = "docsync/document/v1"
	domainDictionary = "docsync/dictionary/v1"
)

// hashFields computes SHA-256 over the domain and the ordered field values.
// Format: SHA256(domain || (0x00 || NFC(field))...).
//
// The null separator prevents boundary ambiguity between adjacent fields
// ("ab","c" must not hash like "a","bc"). Fields are NFC normalized first so
// that visually identical titles arriving in different Unicode compositions
// do not register as changes.
func hashFields(domain string, fields ...string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, f := range fields {
		h.Write([]byte{0x00})
		h.Write([]byte(norm.NFC.String(f)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
