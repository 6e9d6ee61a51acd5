package remotefs

import (
	"context"
	"strings"
	"testing"
)

type fakeFS struct {
	kind      Kind
	objects   map[string]int64 // remote path -> size
	uploads   []string
	renames   [][2]string
}

func newFakeFS(kind Kind) *fakeFS {
	return &fakeFS{kind: kind, objects: map[string]int64{}}
}

func (f *fakeFS) Kind() Kind { return f.kind }

func (f *fakeFS) List(_ context.Context, dir string) ([]FileInfo, error) {
	var out []FileInfo
	for name, size := range f.objects {
		out = append(out, FileInfo{Name: name, Size: size})
	}
	return out, nil
}

func (f *fakeFS) Upload(_ context.Context, localPath, remotePath string) error {
	f.uploads = append(f.uploads, remotePath)
	f.objects[remotePath] = 42
	return nil
}

func (f *fakeFS) Download(context.Context, string, string) error { return nil }

func (f *fakeFS) Rename(_ context.Context, from, to string) error {
	f.renames = append(f.renames, [2]string{from, to})
	size := f.objects[from]
	delete(f.objects, from)
	f.objects[to] = size
	return nil
}

func TestUploadChecksummedObjectStoreIsOnePhase(t *testing.T) {
	fs := newFakeFS(KindObjectStore)
	if err := UploadChecksummed(context.Background(), fs, "/local/1001.hdr", "/remote/1001.hdr", "aabb"); err != nil {
		t.Fatal(err)
	}
	if len(fs.renames) != 0 {
		t.Fatalf("object-store upload must not rename, got %v", fs.renames)
	}
	if _, ok := fs.objects["/remote/1001.hdr.aabb"]; !ok {
		t.Fatalf("expected final checksummed object to exist: %v", fs.objects)
	}
}

func TestUploadChecksummedBrokerIsTwoPhase(t *testing.T) {
	fs := newFakeFS(KindBroker)
	if err := UploadChecksummed(context.Background(), fs, "/local/1001.hdr", "/remote/1001.hdr", "aabb"); err != nil {
		t.Fatal(err)
	}
	if len(fs.uploads) != 1 || !strings.HasPrefix(fs.uploads[0], "/remote/1001.hdr.part-") {
		t.Fatalf("expected part-uuid upload, got %v", fs.uploads)
	}
	if len(fs.renames) != 1 || fs.renames[0][0] != fs.uploads[0] || fs.renames[0][1] != "/remote/1001.hdr.aabb" {
		t.Fatalf("expected rename part -> checksummed, got %v", fs.renames)
	}
}

func TestListChecksummedStripsAndSkipsDotless(t *testing.T) {
	fs := newFakeFS(KindObjectStore)
	fs.objects["1001.hdr.aa11"] = 10
	fs.objects["1001_0_0.dat.bb22"] = 20
	fs.objects["noext"] = 5

	stats, err := ListChecksummed(context.Background(), fs, "/remote")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d entries, want 2: %v", len(stats), stats)
	}
	if stats["1001.hdr"].MD5 != "aa11" || stats["1001.hdr"].Size != 10 {
		t.Fatalf("bad stat for 1001.hdr: %+v", stats["1001.hdr"])
	}
	if _, ok := stats["noext"]; ok {
		t.Fatal("dotless file should have been skipped")
	}
}
