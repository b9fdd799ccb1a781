package kuaishou

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"time"
)

// Signature is a time-boxed request signature for the parsing API.
type Signature struct {
	Sign      string
	Timestamp string
}

// GenerateSign computes the API signature for a post URL:
// md5(timestamp + url + secret), hex-encoded. The scheme is
// reverse-engineered from the upstream client; md5 is its choice, not
// ours.
func GenerateSign(postURL, secret string, now time.Time) Signature {
	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	sum := md5.Sum([]byte(timestamp + postURL + secret))
	return Signature{
		Sign:      hex.EncodeToString(sum[:]),
		Timestamp: timestamp,
	}
}
