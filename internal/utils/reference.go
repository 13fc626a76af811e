package utils

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Unambiguous charset: no 0/O, 1/I/L.
const refCharset = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// GenerateRefCode returns a short human-presentable reference such as
// SHP-7KQ2MX. Operators read these out loud at the pickup desk, so the
// charset avoids lookalike characters.
func GenerateRefCode(prefix string) string {
	buf := make([]byte, 6)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(refCharset))))
		if err != nil {
			// fallback: time-based entropy
			n = big.NewInt(time.Now().UnixNano() % int64(len(refCharset)))
		}
		buf[i] = refCharset[n.Int64()]
	}
	return fmt.Sprintf("%s-%s", prefix, string(buf))
}

// NewVendorToken mints the QR credential for the vendor -> post-office leg.
func NewVendorToken() string {
	return "VQR-" + uuid.NewString()
}

// NewClientToken mints the QR credential for the post-office -> buyer leg.
// Independent from the vendor token so a leaked one cannot stand in for the other.
func NewClientToken() string {
	return "CQR-" + uuid.NewString()
}

// Round2 rounds to two decimal places (kobo precision).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundNaira rounds to the nearest whole currency unit.
func RoundNaira(v float64) float64 {
	return math.Round(v)
}
