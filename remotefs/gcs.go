package remotefs

import (
	"context"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/vortexdb/snaptransfer/internal/xerr"
)

// DistributedFS is this engine's stand-in for the Doris broker's
// traditional HDFS target: a distributed, directory-structured object
// store reached over the Google Cloud Storage client, used for the
// distributed-fs kind with a gs:// bucket location. Like the broker variant, its
// writes are not treated as atomic, so uploads stage to ".part" first
// (see UploadChecksummed).
type DistributedFS struct {
	client *storage.Client
	bucket string
}

func NewDistributedFS(client *storage.Client, bucket string) *DistributedFS {
	return &DistributedFS{client: client, bucket: bucket}
}

func (d *DistributedFS) Kind() Kind { return KindDistributedFS }

func (d *DistributedFS) key(p string) string { return strings.TrimPrefix(p, "/") }

func (d *DistributedFS) List(ctx context.Context, dir string) ([]FileInfo, error) {
	prefix := d.key(dir)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	it := d.client.Bucket(d.bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var out []FileInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, xerr.Wrap(xerr.KindIO, err, "gcs list %s", dir)
		}
		out = append(out, FileInfo{Name: strings.TrimPrefix(attrs.Name, prefix), Size: attrs.Size})
	}
	return out, nil
}

func (d *DistributedFS) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return xerr.Wrap(xerr.KindIO, err, "open %s", localPath)
	}
	defer f.Close()

	w := d.client.Bucket(d.bucket).Object(d.key(remotePath)).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return xerr.Wrap(xerr.KindIO, err, "gcs write %s", remotePath)
	}
	if err := w.Close(); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "gcs finalize %s", remotePath)
	}
	return nil
}

func (d *DistributedFS) Download(ctx context.Context, remotePath, localPath string) error {
	r, err := d.client.Bucket(d.bucket).Object(d.key(remotePath)).NewReader(ctx)
	if err != nil {
		return xerr.Wrap(xerr.KindIO, err, "gcs read %s", remotePath)
	}
	defer r.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return xerr.Wrap(xerr.KindIO, err, "create %s", localPath)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "write %s", localPath)
	}
	return nil
}

// Rename is the commit point for two-phase uploads on this backend: copy
// the staged ".part" object to its checksummed name, then delete the
// staged object.
func (d *DistributedFS) Rename(ctx context.Context, from, to string) error {
	bucket := d.client.Bucket(d.bucket)
	src := bucket.Object(d.key(from))
	dst := bucket.Object(d.key(to))
	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "gcs rename %s -> %s", from, to)
	}
	if err := src.Delete(ctx); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "gcs delete staged %s", from)
	}
	return nil
}
