package payment

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign hashes the fields sorted by key as k=v pairs joined by '&', with the
// secret appended. The signature field itself never takes part.
func Sign(fields map[string]string, secret string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == FieldSignature {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	b.WriteString(secret)

	sum := sha256.Sum256([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func ValidSignature(fields map[string]string, secret string) bool {
	got := strings.ToUpper(fields[FieldSignature])
	if got == "" {
		return false
	}
	want := Sign(fields, secret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
