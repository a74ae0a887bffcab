package chat

import (
	"crypto/rand"
	"time"
)

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const threadIDLength = 26

// NewThreadID generates a 26-character ULID in Crockford base32, matching
// the thread id format the backend uses: 48 bits of millisecond timestamp
// followed by 80 random bits.
func NewThreadID() string {
	timestamp := uint64(time.Now().UnixMilli()) & ((1 << 48) - 1)

	var randomBytes [10]byte
	// rand.Read on crypto/rand never fails on supported platforms
	rand.Read(randomBytes[:])

	value := make([]byte, 16)
	for i := 5; i >= 0; i-- {
		value[i] = byte(timestamp)
		timestamp >>= 8
	}
	copy(value[6:], randomBytes[:])

	// 128 bits big-endian, emitted as 26 base32 characters from the
	// least significant end
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(value[i])
		lo = lo<<8 | uint64(value[8+i])
	}

	out := make([]byte, threadIDLength)
	for i := threadIDLength - 1; i >= 0; i-- {
		out[i] = crockfordAlphabet[lo&0x1F]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out)
}
