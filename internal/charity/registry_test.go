package charity_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wagerx/escrow-engine/internal/charity"
)

func TestNewRegistry_Defaults(t *testing.T) {
	r := charity.NewRegistry()

	entries := r.List()
	if len(entries) == 0 {
		t.Fatal("expected built-in defaults")
	}
	for _, e := range entries {
		if e.Name == "" || e.Address == "" {
			t.Errorf("incomplete default entry %+v", e)
		}
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	r := charity.NewRegistry()
	first := r.List()[0]

	if _, ok := r.Lookup(first.Address); !ok {
		t.Errorf("expected lookup by exact address to succeed")
	}

	if _, ok := r.Lookup(strings.ToLower(first.Address)); !ok {
		t.Error("expected lookup to ignore address casing")
	}

	if _, ok := r.Lookup("0x0000000000000000000000000000000000000000"); ok {
		t.Error("unknown address should not resolve")
	}
	if _, ok := r.Lookup("not-an-address"); ok {
		t.Error("malformed address should not resolve")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charities.json")
	payload := `[
		{"name": "Test Fund", "address": "0x1111111111111111111111111111111111111111", "description": "testing"}
	]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	r := charity.NewRegistry()
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	entries := r.List()
	if len(entries) != 1 {
		t.Fatalf("expected file to replace defaults, got %d entries", len(entries))
	}
	if entries[0].Name != "Test Fund" {
		t.Errorf("unexpected entry %+v", entries[0])
	}
	if _, ok := r.Lookup("0x1111111111111111111111111111111111111111"); !ok {
		t.Error("loaded entry not found by address")
	}
}

func TestLoadFile_RejectsBadEntries(t *testing.T) {
	dir := t.TempDir()

	badAddr := filepath.Join(dir, "bad-addr.json")
	os.WriteFile(badAddr, []byte(`[{"name": "X", "address": "nope"}]`), 0o600)

	r := charity.NewRegistry()
	if err := r.LoadFile(badAddr); err == nil {
		t.Error("expected invalid address to be rejected")
	}
	if len(r.List()) == 0 {
		t.Error("failed load should leave previous entries intact")
	}

	missing := filepath.Join(dir, "missing.json")
	if err := r.LoadFile(missing); err == nil {
		t.Error("expected missing file to error")
	}
}
