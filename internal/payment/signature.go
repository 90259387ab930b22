package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the replay window around the signed timestamp.
const DefaultTolerance = 300 * time.Second

var (
	ErrMissingSignature   = errors.New("webhook signature missing")
	ErrMalformedSignature = errors.New("webhook signature header malformed")
	ErrTimestampExpired   = errors.New("webhook timestamp expired")
	ErrSignatureMismatch  = errors.New("invalid signature")
)

// SignatureHeader is the decoded form of the signature header.
type SignatureHeader struct {
	Timestamp  int64
	Signatures [][]byte
}

// ParseSignatureHeader decodes "t=<unix>,v1=<hex>[,v1=<hex>...]". Unknown
// keys are ignored. A header without a timestamp or without any v1
// signature is malformed.
func ParseSignatureHeader(header string) (SignatureHeader, error) {
	var sh SignatureHeader
	if strings.TrimSpace(header) == "" {
		return sh, ErrMissingSignature
	}

	haveTimestamp := false
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return sh, fmt.Errorf("%w: bad timestamp %q", ErrMalformedSignature, value)
			}
			sh.Timestamp = ts
			haveTimestamp = true
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			sh.Signatures = append(sh.Signatures, sig)
		}
	}

	if !haveTimestamp {
		return sh, fmt.Errorf("%w: no timestamp", ErrMalformedSignature)
	}
	if len(sh.Signatures) == 0 {
		return sh, fmt.Errorf("%w: no v1 signature", ErrMalformedSignature)
	}
	return sh, nil
}

// ComputeSignature returns HMAC-SHA256 over "{timestamp}.{payload}".
func ComputeSignature(payload []byte, timestamp int64, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignHeader builds a header value for payload, as the processor would.
func SignHeader(payload []byte, timestamp int64, secret string) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(ComputeSignature(payload, timestamp, secret)))
}

// VerifySignature checks the timestamp window first, then the signature.
func VerifySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	sh, err := ParseSignatureHeader(header)
	if err != nil {
		return err
	}

	// Bounds are computed around now so extreme timestamps cannot overflow.
	window := int64(tolerance / time.Second)
	if sh.Timestamp < now.Unix()-window || sh.Timestamp > now.Unix()+window {
		return ErrTimestampExpired
	}

	expected := ComputeSignature(payload, sh.Timestamp, secret)
	for _, sig := range sh.Signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrSignatureMismatch
}
