package migrate

import (
	"testing"
	"time"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Add Recipient Phone!": "add_recipient_phone",
		"  kits--v2 ":          "kits_v2",
		"!!!":                  "",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Fatalf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateAtRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	if _, err := createAt(dir, "items", now); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := createAt(dir, "items", now); err == nil {
		t.Fatalf("expected duplicate create to fail")
	}
}

func TestParseVersion(t *testing.T) {
	if _, err := ParseVersion("20260105090000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "2026", "2026010509000x"} {
		if _, err := ParseVersion(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
