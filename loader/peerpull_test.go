package loader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/vortexdb/snaptransfer/engine"
)

// fakePeerFile is one file a fakePeerServer can serve.
type fakePeerFile struct {
	data []byte
	md5  string // empty means the peer declares no checksum, size-only compare
}

// fakePeerServer fakes the three call patterns PeerClient issues against a
// remote node's "/api/_tablet/_download" endpoint: a directory listing GET,
// a HEAD stat, and a file GET. Listings and files are both keyed by the
// literal "file" query value the client sends, mirroring peerclient_test.go's
// httptest.Server-per-call-pattern style.
type fakePeerServer struct {
	mu    sync.Mutex
	dirs  map[string][]string
	files map[string]fakePeerFile
	gets  map[string]int

	srv *httptest.Server
}

func newFakePeerServer() *fakePeerServer {
	s := &fakePeerServer{
		dirs:  map[string][]string{},
		files: map[string]fakePeerFile{},
		gets:  map[string]int{},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *fakePeerServer) Close() { s.srv.Close() }

func (s *fakePeerServer) hostPort(t *testing.T) (string, int) {
	t.Helper()
	u, err := url.Parse(s.srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return u.Hostname(), port
}

func (s *fakePeerServer) getCount(remotePath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[remotePath]
}

func (s *fakePeerServer) handle(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")

	s.mu.Lock()
	defer s.mu.Unlock()

	if names, ok := s.dirs[file]; ok {
		w.Write([]byte(strings.Join(names, "\n") + "\n"))
		return
	}

	f, ok := s.files[file]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(f.data)))
	if f.md5 != "" {
		w.Header().Set("Content-MD5", f.md5)
	}
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	if !strings.Contains(r.URL.RawQuery, "channel=ingest_binlog") {
		http.Error(w, "expected channel=ingest_binlog query param", http.StatusBadRequest)
		return
	}
	s.gets[file]++
	w.WriteHeader(http.StatusOK)
	w.Write(f.data)
}

// newPeerPullFixture wires a MemStorageEngine with one local tablet (id
// 3001) whose data dir has plenty of capacity, the way the download tests
// in loader_test.go set up their engine collaborator.
func newPeerPullFixture() *engine.MemStorageEngine {
	eng := engine.NewMemStorageEngine()
	eng.Tablets.Put(&engine.MemTablet{ID: 3001, Dir: &engine.MemDataDir{PathVal: "/data0", CapacityLeft: 1 << 30}})
	return eng
}

func TestPeerPullFreshDownloadAndPrune(t *testing.T) {
	srv := newFakePeerServer()
	defer srv.Close()
	srv.dirs["/snap/2001"] = []string{"2001.hdr", "2001_0_0.dat"}
	srv.files["/snap/2001/2001.hdr"] = fakePeerFile{data: []byte("header-A")}
	srv.files["/snap/2001/2001_0_0.dat"] = fakePeerFile{data: []byte("data-A")}

	localDir := t.TempDir()
	strayPath := filepath.Join(localDir, "3001_9_9.dat")
	if err := os.WriteFile(strayPath, []byte("orphaned"), 0o644); err != nil {
		t.Fatal(err)
	}

	host, port := srv.hostPort(t)
	ld := newTestLoader(nil, newPeerPullFixture())
	snap := RemoteTabletSnapshot{
		RemoteBEAddr:       host,
		RemoteBEPort:       port,
		RemoteToken:        "tok",
		RemoteSnapshotPath: "/snap/2001",
		RemoteTabletID:     2001,
		LocalSnapshotPath:  localDir,
		LocalTabletID:      3001,
	}

	if err := ld.PeerPull(context.Background(), []RemoteTabletSnapshot{snap}); err != nil {
		t.Fatal(err)
	}

	hdr, err := os.ReadFile(filepath.Join(localDir, "3001.hdr"))
	if err != nil {
		t.Fatal(err)
	}
	if string(hdr) != "header-A" {
		t.Fatalf("hdr content = %q, want header-A", hdr)
	}
	dat, err := os.ReadFile(filepath.Join(localDir, "2001_0_0.dat"))
	if err != nil {
		t.Fatal(err)
	}
	if string(dat) != "data-A" {
		t.Fatalf("dat content = %q, want data-A", dat)
	}
	if _, err := os.Stat(strayPath); !os.IsNotExist(err) {
		t.Fatalf("expected stray local file to be pruned, stat err = %v", err)
	}
}

func TestPeerPullSkipsUnchangedFileBySize(t *testing.T) {
	srv := newFakePeerServer()
	defer srv.Close()
	srv.dirs["/snap/2001"] = []string{"2001.hdr", "2001_0_0.dat"}
	srv.files["/snap/2001/2001.hdr"] = fakePeerFile{data: []byte("header-B")}
	srv.files["/snap/2001/2001_0_0.dat"] = fakePeerFile{data: []byte("seg-data")} // no declared md5

	localDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(localDir, "2001_0_0.dat"), []byte("seg-data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(localDir, "3001.hdr"), []byte("stale-header"), 0o644); err != nil {
		t.Fatal(err)
	}

	host, port := srv.hostPort(t)
	ld := newTestLoader(nil, newPeerPullFixture())
	snap := RemoteTabletSnapshot{
		RemoteBEAddr:       host,
		RemoteBEPort:       port,
		RemoteToken:        "tok",
		RemoteSnapshotPath: "/snap/2001",
		RemoteTabletID:     2001,
		LocalSnapshotPath:  localDir,
		LocalTabletID:      3001,
	}

	if err := ld.PeerPull(context.Background(), []RemoteTabletSnapshot{snap}); err != nil {
		t.Fatal(err)
	}

	if n := srv.getCount("/snap/2001/2001_0_0.dat"); n != 0 {
		t.Fatalf("expected the size-matched .dat file to be skipped, got %d GETs", n)
	}
	if n := srv.getCount("/snap/2001/2001.hdr"); n != 1 {
		t.Fatalf("expected the .hdr file to always be re-pulled, got %d GETs", n)
	}
	hdr, err := os.ReadFile(filepath.Join(localDir, "3001.hdr"))
	if err != nil {
		t.Fatal(err)
	}
	if string(hdr) != "header-B" {
		t.Fatalf("hdr content = %q, want the freshly re-pulled header-B", hdr)
	}
}

func TestPeerPullRedownloadsOnMD5Mismatch(t *testing.T) {
	const realContent = "segment1"
	const realMD5 = "3b8362c44d8472ed6567a7cdd6abe124" // md5("segment1")

	srv := newFakePeerServer()
	defer srv.Close()
	srv.dirs["/snap/2001"] = []string{"2001_0_0.dat"}
	srv.files["/snap/2001/2001_0_0.dat"] = fakePeerFile{data: []byte(realContent), md5: realMD5}

	localDir := t.TempDir()
	// Same size as realContent (8 bytes) but different bytes: a size-only
	// comparison would wrongly call this file up to date.
	if err := os.WriteFile(filepath.Join(localDir, "2001_0_0.dat"), []byte("segmentX"), 0o644); err != nil {
		t.Fatal(err)
	}

	host, port := srv.hostPort(t)
	ld := newTestLoader(nil, newPeerPullFixture())
	snap := RemoteTabletSnapshot{
		RemoteBEAddr:       host,
		RemoteBEPort:       port,
		RemoteToken:        "tok",
		RemoteSnapshotPath: "/snap/2001",
		RemoteTabletID:     2001,
		LocalSnapshotPath:  localDir,
		LocalTabletID:      3001,
	}

	if err := ld.PeerPull(context.Background(), []RemoteTabletSnapshot{snap}); err != nil {
		t.Fatal(err)
	}

	if n := srv.getCount("/snap/2001/2001_0_0.dat"); n != 1 {
		t.Fatalf("expected the md5-mismatched .dat file to be re-downloaded, got %d GETs", n)
	}
	got, err := os.ReadFile(filepath.Join(localDir, "2001_0_0.dat"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != realContent {
		t.Fatalf("dat content = %q, want %q", got, realContent)
	}
}

func TestPeerPullSkipsWhenDeclaredMD5Matches(t *testing.T) {
	const content = "segment1"
	const md5Sum = "3b8362c44d8472ed6567a7cdd6abe124"

	srv := newFakePeerServer()
	defer srv.Close()
	srv.dirs["/snap/2001"] = []string{"2001_0_0.dat"}
	srv.files["/snap/2001/2001_0_0.dat"] = fakePeerFile{data: []byte(content), md5: md5Sum}

	localDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(localDir, "2001_0_0.dat"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	host, port := srv.hostPort(t)
	ld := newTestLoader(nil, newPeerPullFixture())
	snap := RemoteTabletSnapshot{
		RemoteBEAddr:       host,
		RemoteBEPort:       port,
		RemoteToken:        "tok",
		RemoteSnapshotPath: "/snap/2001",
		RemoteTabletID:     2001,
		LocalSnapshotPath:  localDir,
		LocalTabletID:      3001,
	}

	if err := ld.PeerPull(context.Background(), []RemoteTabletSnapshot{snap}); err != nil {
		t.Fatal(err)
	}

	if n := srv.getCount("/snap/2001/2001_0_0.dat"); n != 0 {
		t.Fatalf("expected the md5-matched .dat file to be skipped, got %d GETs", n)
	}
}
