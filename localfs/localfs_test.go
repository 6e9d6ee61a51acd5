package localfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListAndMD5(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1001.hdr"), []byte("header"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "1001_0_0.dat"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := List(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("got %d names, want 2: %v", len(names), names)
	}

	sum, err := MD5Sum(filepath.Join(dir, "1001.hdr"))
	if err != nil {
		t.Fatal(err)
	}
	if sum == "" {
		t.Fatal("expected non-empty md5")
	}
}

func TestHardlinkSharesInode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Hardlink(src, dst); err != nil {
		t.Fatal(err)
	}
	si, err := os.Stat(src)
	if err != nil {
		t.Fatal(err)
	}
	di, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(si, di) {
		t.Fatal("expected hardlink to share inode")
	}
}

func TestUnlinkMissingIsNotError(t *testing.T) {
	if err := Unlink(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
