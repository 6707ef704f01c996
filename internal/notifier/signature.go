package notifier

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" on webhook deliveries.
const SignatureHeader = "X-Media-Signature"

// Sign computes the HMAC-SHA256 of "<unix>.<body>" with secret.
func Sign(body []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func signatureHeader(body []byte, secret string, at time.Time) string {
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), Sign(body, secret, at))
}

// Verify checks a signature header against body. Signatures older than
// tolerance are rejected.
func Verify(body []byte, header, secret string, tolerance time.Duration) error {
	var (
		sig string
		ts  int64
		err error
	)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "t="); ok {
			if ts, err = strconv.ParseInt(v, 10, 64); err != nil {
				return fmt.Errorf("invalid timestamp: %w", err)
			}
		} else if v, ok := strings.CutPrefix(part, "v1="); ok {
			sig = v
		}
	}
	if sig == "" {
		return fmt.Errorf("signature not found")
	}
	if ts == 0 {
		return fmt.Errorf("timestamp not found")
	}

	at := time.Unix(ts, 0)
	if time.Since(at) > tolerance {
		return fmt.Errorf("signature expired")
	}
	if !hmac.Equal([]byte(sig), []byte(Sign(body, secret, at))) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
