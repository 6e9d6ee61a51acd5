package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, srv *httptest.Server) *PeerClient {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	c := NewPeerClient(u.Hostname(), port, "tok")
	c.LowSpeedLimitKBps = 1 << 20 // keep download timeout at its floor in tests
	return c
}

func TestPeerClientList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("2001.hdr\n\n2001_0_0.dat\n"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	names, err := c.List(context.Background(), "/snap/2001/abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "2001.hdr" || names[1] != "2001_0_0.dat" {
		t.Fatalf("got %v", names)
	}
}

func TestPeerClientStat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "128")
		w.Header().Set("Content-MD5", "deadbeef")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	size, md5, err := c.Stat(context.Background(), "/snap/2001/abc/2001.hdr")
	if err != nil {
		t.Fatal(err)
	}
	if size != 128 || md5 != "deadbeef" {
		t.Fatalf("got size=%d md5=%s", size, md5)
	}
}

func TestPeerClientDownload(t *testing.T) {
	const payload = "some file bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "channel=ingest_binlog") {
			t.Errorf("expected channel query param, got %s", r.URL.RawQuery)
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	dst := filepath.Join(t.TempDir(), "out.dat")
	if err := c.Download(context.Background(), "/snap/2001/abc/2001_0_0.dat", dst, int64(len(payload)), "ingest_binlog"); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Fatalf("got %q want %q", got, payload)
	}
}

func TestPeerClientRetriesOnFailure(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("2001.hdr\n"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	names, err := c.List(context.Background(), "/snap/2001/abc")
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if len(names) != 1 {
		t.Fatalf("got %v", names)
	}
}
