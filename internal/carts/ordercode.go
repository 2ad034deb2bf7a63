package carts

import (
	"crypto/rand"
	"fmt"
	"time"
)

// order codes drop ambiguous characters so support staff can read them back
// over the phone.
var orderCodeCharset = []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")

// GenerateOrderCode produces the human-readable code stamped on a cart at
// creation, e.g. CD-20250901-7QK2MV. Uniqueness is enforced by the DB.
func GenerateOrderCode(now time.Time) (string, error) {
	suffix := make([]rune, 6)
	buf := make([]byte, len(suffix))
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order code: %w", err)
	}
	for i := range suffix {
		suffix[i] = orderCodeCharset[int(buf[i])%len(orderCodeCharset)]
	}
	return fmt.Sprintf("CD-%s-%s", now.UTC().Format("20060102"), string(suffix)), nil
}
