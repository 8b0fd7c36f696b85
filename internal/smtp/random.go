package smtp

import (
	"crypto/rand"
)

// randomLocalLen keeps accidental collisions with real mailboxes
// negligible while staying well under the 64-char local limit.
const randomLocalLen = 15

const randomLocalCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomLocal generates the catch-all probe's local part. Regenerated
// per session and never cached.
func RandomLocal() string {
	buf := make([]byte, randomLocalLen)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform RNG is broken; a fixed
		// improbable fallback keeps the probe functional.
		return "zx9q1w8e7r3t5y0"
	}
	for i, b := range buf {
		buf[i] = randomLocalCharset[int(b)%len(randomLocalCharset)]
	}
	return string(buf)
}
