package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("TEST_TICK", "45")
	d, err := Duration("TEST_TICK", time.Minute)
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}
	if d != 45*time.Second {
		t.Fatalf("expected 45s, got %s", d)
	}

	t.Setenv("TEST_TICK", "2m")
	d, err = Duration("TEST_TICK", time.Minute)
	if err != nil || d != 2*time.Minute {
		t.Fatalf("expected 2m, got %s (err %v)", d, err)
	}

	t.Setenv("TEST_TICK", "soon")
	if _, err := Duration("TEST_TICK", time.Minute); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestIntAndBool(t *testing.T) {
	t.Setenv("TEST_LIMIT", "")
	if n, err := Int("TEST_LIMIT", 7); err != nil || n != 7 {
		t.Fatalf("expected fallback 7, got %d (err %v)", n, err)
	}
	t.Setenv("TEST_LIMIT", "-3")
	if n := PositiveInt("TEST_LIMIT", 7); n != 7 {
		t.Fatalf("expected fallback for negative value, got %d", n)
	}
	t.Setenv("TEST_FLAG", "yes")
	if !Bool("TEST_FLAG", false) {
		t.Fatal("expected yes to be true")
	}
	t.Setenv("TEST_FLAG", "off")
	if Bool("TEST_FLAG", true) {
		t.Fatal("expected off to be false")
	}
}

func TestLoadKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("SLOTBOOK_A=from-file\nSLOTBOOK_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SLOTBOOK_A", "from-env")
	t.Setenv("SLOTBOOK_B", "")
	os.Unsetenv("SLOTBOOK_B")
	t.Cleanup(func() { os.Unsetenv("SLOTBOOK_B") })

	if err := Load(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := String("SLOTBOOK_A", ""); got != "from-env" {
		t.Fatalf("expected env value to win, got %q", got)
	}
	if got := String("SLOTBOOK_B", ""); got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
}
