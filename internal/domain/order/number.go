package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNumber generates a human-readable, globally unique order number of the
// form ORD-20250615-7F3A2C41. The date part aids support lookups; the random
// part comes from a UUID so numbers are unguessable across instances.
func NewNumber(now time.Time) string {
	id := uuid.New()
	suffix := strings.ToUpper(fmt.Sprintf("%x", id[:4]))
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}
