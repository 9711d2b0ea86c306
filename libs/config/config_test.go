package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", 7 * time.Second},
		{"15", 15 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"2m", 2 * time.Minute},
		{"-3", 7 * time.Second},
		{"soon", 7 * time.Second},
	}
	for _, tc := range cases {
		t.Setenv("FITBOOK_TEST_DURATION", tc.raw)
		if got := Duration("FITBOOK_TEST_DURATION", 7*time.Second); got != tc.want {
			t.Fatalf("Duration(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestListAndBool(t *testing.T) {
	t.Setenv("FITBOOK_TEST_LIST", " a, ,b ,c")
	got := List("FITBOOK_TEST_LIST", "")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected list: %v", got)
	}

	t.Setenv("FITBOOK_TEST_BOOL", "off")
	if Bool("FITBOOK_TEST_BOOL", true) {
		t.Fatal("expected false for off")
	}
	t.Setenv("FITBOOK_TEST_BOOL", "maybe")
	if !Bool("FITBOOK_TEST_BOOL", true) {
		t.Fatal("expected fallback for unknown value")
	}
}

func TestPort(t *testing.T) {
	t.Setenv("FITBOOK_TEST_PORT", "70000")
	if _, err := Port("FITBOOK_TEST_PORT", "8080"); err == nil {
		t.Fatal("expected error for out of range port")
	}
	t.Setenv("FITBOOK_TEST_PORT", "")
	p, err := Port("FITBOOK_TEST_PORT", "8080")
	if err != nil || p != "8080" {
		t.Fatalf("expected fallback port, got %q (%v)", p, err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("FITBOOK_DOTENV_A=from-file\nFITBOOK_DOTENV_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("FITBOOK_DOTENV_B", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("FITBOOK_DOTENV_A") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("FITBOOK_DOTENV_A"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("FITBOOK_DOTENV_B"); got != "from-env" {
		t.Fatalf("environment should win over file, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}
