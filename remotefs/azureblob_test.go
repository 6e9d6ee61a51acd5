package remotefs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// azureBlobServer fakes just the slice of the Azure Blob REST surface
// AzureBlobFS issues: PUT (upload), GET (download), and the container
// "list blobs flat" GET, keyed by blob name within a single container.
type azureBlobServer struct {
	mu    sync.Mutex
	blobs map[string][]byte
	srv   *httptest.Server
}

func newAzureBlobServer() *azureBlobServer {
	s := &azureBlobServer{blobs: map[string][]byte{}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *azureBlobServer) Close() { s.srv.Close() }

func (s *azureBlobServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("comp") == "list" {
		s.serveList(w, r)
		return
	}

	segs := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if len(segs) != 2 || segs[1] == "" {
		http.Error(w, "expected /<container>/<blob>", http.StatusBadRequest)
		return
	}
	blobName := segs[1]

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		data, ok := s.blobs[blobName]
		s.mu.Unlock()
		if !ok {
			http.Error(w, "no such blob", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.mu.Lock()
		s.blobs[blobName] = data
		s.mu.Unlock()
		w.Header().Set("ETag", `"fake-etag"`)
		w.WriteHeader(http.StatusCreated)
	default:
		http.Error(w, "unsupported method "+r.Method, http.StatusMethodNotAllowed)
	}
}

func (s *azureBlobServer) serveList(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?><EnumerationResults><Blobs>`)
	for name, data := range s.blobs {
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		fmt.Fprintf(&sb, `<Blob><Name>%s</Name><Properties><Content-Length>%d</Content-Length><BlobType>BlockBlob</BlobType></Properties></Blob>`, name, len(data))
	}
	sb.WriteString(`</Blobs><NextMarker/></EnumerationResults>`)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(sb.String()))
}

// newTestAzureBlobFS points a real azblob.Client at the fake server via a
// custom transport, exercising the actual SDK request/response plumbing
// instead of faking the remotefs.FS interface directly.
func newTestAzureBlobFS(t *testing.T, s *azureBlobServer) *AzureBlobFS {
	t.Helper()
	opts := &azblob.ClientOptions{ClientOptions: azcore.ClientOptions{Transport: s.srv.Client()}}
	client, err := azblob.NewClientWithNoCredential(s.srv.URL, opts)
	if err != nil {
		t.Fatal(err)
	}
	return NewAzureBlobFS(client, "snapshots")
}

func TestAzureBlobFSUploadDownloadRoundTrip(t *testing.T) {
	s := newAzureBlobServer()
	defer s.Close()
	fs := newTestAzureBlobFS(t, s)

	local := filepath.Join(t.TempDir(), "1001.hdr")
	if err := os.WriteFile(local, []byte("header-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fs.Upload(context.Background(), local, "remote/1001/1001.hdr.aabb"); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.hdr")
	if err := fs.Download(context.Background(), "remote/1001/1001.hdr.aabb", out); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "header-bytes" {
		t.Fatalf("got %q, want %q", got, "header-bytes")
	}
}

func TestAzureBlobFSList(t *testing.T) {
	s := newAzureBlobServer()
	defer s.Close()
	fs := newTestAzureBlobFS(t, s)

	local := filepath.Join(t.TempDir(), "1001_0_0.dat")
	if err := os.WriteFile(local, []byte("rowset"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fs.Upload(context.Background(), local, "remote/1001/1001_0_0.dat.cc22"); err != nil {
		t.Fatal(err)
	}

	entries, err := fs.List(context.Background(), "remote/1001")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "1001_0_0.dat.cc22" || entries[0].Size != 6 {
		t.Fatalf("got %+v", entries)
	}
}

func TestAzureBlobFSKindIsObjectStore(t *testing.T) {
	fs := &AzureBlobFS{}
	if fs.Kind() != KindObjectStore {
		t.Fatalf("expected KindObjectStore, got %s", fs.Kind())
	}
}
