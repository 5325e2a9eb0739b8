// Package hmacauth authenticates webhook callers that share a secret with
// the service, such as the outcome-verification oracle. Requests carry a
// unix timestamp and a hex HMAC-SHA256 over timestamp ‖ body; stale
// timestamps are rejected to narrow the replay window.
package hmacauth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Default header names; override per Verifier when a caller uses its own.
const (
	DefaultSignatureHeader = "X-Wagerx-Signature"
	DefaultTimestampHeader = "X-Wagerx-Timestamp"
)

var (
	ErrMissingSignature = errors.New("hmacauth: missing request signature")
	ErrMissingTimestamp = errors.New("hmacauth: missing or malformed request timestamp")
	ErrStaleTimestamp   = errors.New("hmacauth: request timestamp outside allowed skew")
	ErrBadSignature     = errors.New("hmacauth: signature mismatch")
)

// Verifier checks request signatures. A Verifier with an empty Secret lets
// everything through, which keeps local development friction-free.
type Verifier struct {
	Secret          string
	MaxSkew         time.Duration
	SignatureHeader string
	TimestampHeader string

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Middleware wraps next, rejecting requests that fail verification with 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := v.VerifyRequest(r); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// VerifyRequest checks the signature headers against the request body. The
// body is restored so downstream handlers can read it again.
func (v *Verifier) VerifyRequest(r *http.Request) error {
	if v.Secret == "" {
		return nil
	}

	sig := r.Header.Get(v.signatureHeader())
	if sig == "" {
		return ErrMissingSignature
	}

	tsRaw := r.Header.Get(v.timestampHeader())
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil || tsRaw == "" {
		return ErrMissingTimestamp
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	drift := now.Sub(time.Unix(ts, 0))
	if drift > v.MaxSkew || -drift > v.MaxSkew {
		return ErrStaleTimestamp
	}

	body, err := replayableBody(r)
	if err != nil {
		return err
	}

	want := Sign(v.Secret, tsRaw, body)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the hex HMAC-SHA256 over timestamp ‖ body. Exported so
// callers and tests can build valid signatures.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) signatureHeader() string {
	if v.SignatureHeader != "" {
		return v.SignatureHeader
	}
	return DefaultSignatureHeader
}

func (v *Verifier) timestampHeader() string {
	if v.TimestampHeader != "" {
		return v.TimestampHeader
	}
	return DefaultTimestampHeader
}

func replayableBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
