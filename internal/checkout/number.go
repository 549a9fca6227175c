package checkout

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NumberFunc produces a candidate order number. Collisions are resolved by
// the insert, which retries with a fresh candidate.
type NumberFunc func(now time.Time) string

// OrderNumber returns ORD-YYYYMMDD-XXXXXXXX with a random uppercase suffix.
func OrderNumber(now time.Time) string {
	return "ORD-" + now.UTC().Format("20060102") + "-" + randomSuffix()
}

func txnRef(now time.Time) string {
	return "TXN" + now.UTC().Format("20060102150405") + randomSuffix()
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
