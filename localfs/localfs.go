// Package localfs is the engine's Local FS Adapter (C2): the thin set of
// directory and file primitives the orchestrators need against the node's
// own disks -- list, stat, md5, permission, unlink, rename, hardlink, and
// directory create/remove. It never talks to a remote backend.
package localfs

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"

	"github.com/vortexdb/snaptransfer/internal/xerr"
)

// IsDir reports whether path exists and is a directory.
func IsDir(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, xerr.Wrap(xerr.KindIO, err, "stat %s", path)
	}
	return fi.IsDir(), nil
}

// List returns the flat list of regular file names directly inside dir,
// using godirwalk for the directory scan the way the rest of the node's
// local storage layer walks data directories.
func List(dir string) ([]string, error) {
	var names []string
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == dir {
				return nil
			}
			if de.IsDir() {
				return filepath.SkipDir
			}
			names = append(names, filepath.Base(path))
			return nil
		},
	})
	if err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "list %s", dir)
	}
	return names, nil
}

// MD5Sum hashes the file at path and returns its hex digest.
func MD5Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", xerr.Wrap(xerr.KindIO, err, "open %s", path)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", xerr.Wrap(xerr.KindIO, err, "hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Unlink removes path; missing files are not an error (caller-side best
// effort semantics, e.g. prune during download).
func Unlink(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return xerr.Wrap(xerr.KindIO, err, "unlink %s", path)
	}
	return nil
}

// Rename moves oldPath to newPath, replacing newPath if it exists.
func Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "rename %s -> %s", oldPath, newPath)
	}
	return nil
}

// Hardlink creates newPath as a hardlink to existingPath.
func Hardlink(existingPath, newPath string) error {
	if err := os.Link(existingPath, newPath); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "link %s -> %s", existingPath, newPath)
	}
	return nil
}

// Chmod sets path's permission bits.
func Chmod(path string, mode os.FileMode) error {
	if err := os.Chmod(path, mode); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "chmod %s", path)
	}
	return nil
}

// RemoveAll recursively removes dir and everything under it.
func RemoveAll(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "remove_all %s", dir)
	}
	return nil
}

// Mkdir creates dir (and nothing above it); it is an error for dir to
// already exist, matching the promote step's remove-then-recreate contract.
func Mkdir(dir string) error {
	if err := os.Mkdir(dir, 0o755); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "mkdir %s", dir)
	}
	return nil
}

