package orders

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"
)

const orderNumberSuffixBytes = 5

var kst = time.FixedZone("KST", 9*60*60)

// NumberGenerator produces external order numbers.
type NumberGenerator func(now time.Time) (string, error)

// NewNumberGenerator returns YYYYMMDD-XXXXXXXX numbers: a KST date stamp and
// eight random base32 characters, optionally prefixed.
func NewNumberGenerator(prefix string) NumberGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	return func(now time.Time) (string, error) {
		buf := make([]byte, orderNumberSuffixBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate order number: %w", err)
		}
		suffix := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
		number := now.In(kst).Format("20060102") + "-" + suffix
		if prefix != "" {
			number = prefix + "-" + number
		}
		return number, nil
	}
}
