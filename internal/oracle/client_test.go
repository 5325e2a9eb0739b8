package oracle_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wagerx/escrow-engine/internal/oracle"
)

func TestHTTPClient_VerifyOutcome(t *testing.T) {
	var got oracle.VerifyRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(oracle.Verification{
			Verified: true,
			Winner:   "0x1111111111111111111111111111111111111111",
			Evidence: "final score 4-2",
		})
	}))
	defer srv.Close()

	c := oracle.NewHTTPClient(srv.URL, 5*time.Second)
	v, err := c.VerifyOutcome(context.Background(), oracle.VerifyRequest{
		WagerID:   7,
		Condition: "Lakers win game 7",
		Category:  "SPORTS",
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if !v.Verified {
		t.Error("expected verified outcome")
	}
	if v.Winner != "0x1111111111111111111111111111111111111111" {
		t.Errorf("unexpected winner %s", v.Winner)
	}
	if got.WagerID != 7 || got.Category != "SPORTS" {
		t.Errorf("request not forwarded: %+v", got)
	}
}

func TestHTTPClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := oracle.NewHTTPClient(srv.URL, 5*time.Second)
	if _, err := c.VerifyOutcome(context.Background(), oracle.VerifyRequest{}); err == nil {
		t.Error("expected error for non-200 response")
	}
}
