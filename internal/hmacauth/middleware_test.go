package hmacauth_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wagerx/escrow-engine/internal/hmacauth"
)

const testSecret = "oracle-shared-secret"

func signedRequest(t *testing.T, secret, body string, at time.Time) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/callbacks/oracle", strings.NewReader(body))
	ts := fmt.Sprintf("%d", at.Unix())
	req.Header.Set(hmacauth.DefaultTimestampHeader, ts)
	req.Header.Set(hmacauth.DefaultSignatureHeader, hmacauth.Sign(secret, ts, []byte(body)))
	return req
}

func TestVerifyRequest(t *testing.T) {
	now := time.Unix(1756700000, 0)
	v := &hmacauth.Verifier{
		Secret:  testSecret,
		MaxSkew: 5 * time.Minute,
		Now:     func() time.Time { return now },
	}

	body := `{"wager_id":7,"winner":"0xabc"}`

	t.Run("valid signature passes", func(t *testing.T) {
		if err := v.VerifyRequest(signedRequest(t, testSecret, body, now)); err != nil {
			t.Fatalf("VerifyRequest: %v", err)
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		err := v.VerifyRequest(signedRequest(t, "not-the-secret", body, now))
		if err != hmacauth.ErrBadSignature {
			t.Fatalf("got %v, want ErrBadSignature", err)
		}
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		req := signedRequest(t, testSecret, body, now)
		req.Body = io.NopCloser(strings.NewReader(`{"wager_id":7,"winner":"0xeve"}`))
		if err := v.VerifyRequest(req); err != hmacauth.ErrBadSignature {
			t.Fatalf("got %v, want ErrBadSignature", err)
		}
	})

	t.Run("stale timestamp rejected", func(t *testing.T) {
		err := v.VerifyRequest(signedRequest(t, testSecret, body, now.Add(-10*time.Minute)))
		if err != hmacauth.ErrStaleTimestamp {
			t.Fatalf("got %v, want ErrStaleTimestamp", err)
		}
	})

	t.Run("future timestamp rejected", func(t *testing.T) {
		err := v.VerifyRequest(signedRequest(t, testSecret, body, now.Add(10*time.Minute)))
		if err != hmacauth.ErrStaleTimestamp {
			t.Fatalf("got %v, want ErrStaleTimestamp", err)
		}
	})

	t.Run("missing headers rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/callbacks/oracle", strings.NewReader(body))
		if err := v.VerifyRequest(req); err != hmacauth.ErrMissingSignature {
			t.Fatalf("got %v, want ErrMissingSignature", err)
		}
		req.Header.Set(hmacauth.DefaultSignatureHeader, "deadbeef")
		if err := v.VerifyRequest(req); err != hmacauth.ErrMissingTimestamp {
			t.Fatalf("got %v, want ErrMissingTimestamp", err)
		}
	})
}

func TestMiddlewareRestoresBody(t *testing.T) {
	now := time.Unix(1756700000, 0)
	v := &hmacauth.Verifier{Secret: testSecret, MaxSkew: time.Minute, Now: func() time.Time { return now }}

	body := `{"wager_id":1}`
	var seen string
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, signedRequest(t, testSecret, body, now))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if seen != body {
		t.Fatalf("handler saw body %q, want %q", seen, body)
	}
}

func TestEmptySecretDisablesVerification(t *testing.T) {
	v := &hmacauth.Verifier{}
	req := httptest.NewRequest(http.MethodPost, "/callbacks/oracle", nil)
	if err := v.VerifyRequest(req); err != nil {
		t.Fatalf("VerifyRequest with empty secret: %v", err)
	}
}
