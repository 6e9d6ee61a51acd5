// Package remotefs is the engine's Remote FS Adapter (C3) and
// Checksum-Indexed Remote Naming layer (C4): a small capability interface
// over {object-store, broker, distributed-fs} backends, plus the
// convention of suffixing uploaded objects with ".<md5>" and indexing that
// suffix back out on list.
package remotefs

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/vortexdb/snaptransfer/internal/xerr"
)

// Kind tags which concrete backend an FS wraps. Only these three variants
// are ever constructed by this engine; there is no open-ended provider
// hierarchy.
type Kind string

const (
	KindObjectStore   Kind = "object-store"
	KindBroker        Kind = "broker"
	KindDistributedFS Kind = "distributed-fs"
)

// FileInfo is a raw directory entry as a backend reports it, before
// checksum-suffix stripping.
type FileInfo struct {
	Name string
	Size int64
}

// FS is the capability every remote backend variant must satisfy. Upload
// and Download move whole files by exact path; List is non-recursive over
// a single directory; Rename is the atomic commit primitive two-phase
// uploads rely on.
type FS interface {
	Kind() Kind
	List(ctx context.Context, dir string) ([]FileInfo, error)
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
	Rename(ctx context.Context, from, to string) error
}

// ChecksumStat is the parsed form of a checksummed remote file: its name
// with the ".<md5>" suffix stripped, the md5 itself, and size.
type ChecksumStat struct {
	Name string
	MD5  string
	Size uint64
}

// ListChecksummed lists dir and indexes the results by stripped name,
// keeping every entry with a non-empty name before its final "." and a
// non-empty segment after it; that segment is taken as the md5 without
// further validation. Files without a "." suffix are skipped -- they cannot
// be part of a checksummed manifest.
func ListChecksummed(ctx context.Context, fs FS, dir string) (map[string]ChecksumStat, error) {
	entries, err := fs.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]ChecksumStat, len(entries))
	for _, e := range entries {
		base := path.Base(e.Name)
		pos := strings.LastIndex(base, ".")
		if pos <= 0 || pos == len(base)-1 {
			continue
		}
		name := base[:pos]
		md5 := base[pos+1:]
		out[name] = ChecksumStat{Name: name, MD5: md5, Size: uint64(e.Size)}
	}
	return out, nil
}

// UploadChecksummed uploads localPath to remotePath+"."+md5, using the
// backend-appropriate commit strategy:
//   - object-store: a single PUT directly to the final checksummed name,
//     since the backend's single-shot write is treated as atomic.
//   - broker / distributed-fs: upload to a uuid-suffixed ".part" staging
//     name first, then rename to the checksummed name -- the rename is the
//     atomic commit point, so a crash mid-upload never leaves a
//     half-written file under its final checksummed name. The staging
//     name carries a random uuid rather than a bare ".part" suffix so two
//     Loaders racing to fill the same remote destination (e.g. a retried
//     task overlapping the task it is retrying) never share a staging
//     path and clobber each other's partial write.
func UploadChecksummed(ctx context.Context, fs FS, localPath, remotePath, md5 string) error {
	final := remotePath + "." + md5
	switch fs.Kind() {
	case KindObjectStore:
		return fs.Upload(ctx, localPath, final)
	case KindBroker, KindDistributedFS:
		part := remotePath + ".part-" + uuid.NewString()
		if err := fs.Upload(ctx, localPath, part); err != nil {
			return err
		}
		return fs.Rename(ctx, part, final)
	default:
		return xerr.New(xerr.KindIO, "unknown remote fs kind: %s", fs.Kind())
	}
}
