package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dkemsley/payoutsync-api/internal/models"
)

// Webhook verification errors
var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// signatureTolerance bounds how old a signed payload may be; replayed
// deliveries beyond it are rejected
const signatureTolerance = 5 * time.Minute

// Event is the decoded webhook envelope. Only payout events are acted on;
// everything else is acknowledged and ignored.
type Event struct {
	Type   string             `json:"type"`
	Payout models.PayoutEvent `json:"-"`
}

// Event types the service reacts to
const (
	EventPayoutPaid   = "payout.paid"
	EventPayoutFailed = "payout.failed"
)

// VerifySignature checks a Stripe-Signature header ("t=<ts>,v1=<hmac>,...")
// against the payload using HMAC-SHA256 over "<ts>.<payload>". Comparison is
// constant-time. now is injectable for tests.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if now.Sub(time.Unix(timestamp, 0)) > signatureTolerance {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ParseEvent decodes a verified webhook payload into an Event
func ParseEvent(payload []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
		Data struct {
			Object models.PayoutEvent `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Event{}, fmt.Errorf("decoding webhook payload: %w", err)
	}
	return Event{Type: envelope.Type, Payout: envelope.Data.Object}, nil
}

// parseSignatureHeader splits "t=1234,v1=abc,v1=def" into the timestamp and
// all v1 signatures
func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		timestamp  int64 = -1
		signatures []string
	)

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp < 0 || len(signatures) == 0 {
		return 0, nil, ErrInvalidSignature
	}
	return timestamp, signatures, nil
}
