package loader

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/vortexdb/snaptransfer/httpclient"
	"github.com/vortexdb/snaptransfer/internal/nlog"
	"github.com/vortexdb/snaptransfer/internal/xerr"
	"github.com/vortexdb/snaptransfer/localfs"
	"github.com/vortexdb/snaptransfer/pathcodec"
	"github.com/vortexdb/snaptransfer/report"
)

// ownerReadWrite is the permission mode applied to every file pulled from a
// peer node, matching the node's convention that downloaded snapshot files
// are owned exclusively by the running process.
const ownerReadWrite = 0o600

// PeerPull fetches each remote tablet snapshot directly from its owning
// database node over HTTP, bypassing the remote-fs backend entirely, then
// prunes local files the peer no longer reports.
func (l *Loader) PeerPull(ctx context.Context, snapshots []RemoteTabletSnapshot) error {
	reporter := report.New(l.coord, l.JobID, l.TaskID)
	if err := reporter.Every(ctx, 0, 0, 0, report.TaskDownload); err != nil {
		return err
	}
	for _, s := range snapshots {
		if err := l.peerPullOne(ctx, reporter, s); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) peerPullOne(ctx context.Context, reporter *report.Reporter, s RemoteTabletSnapshot) error {
	guard := l.locks.Acquire(s.LocalSnapshotPath)
	defer guard.Release()

	client := httpclient.NewPeerClient(s.RemoteBEAddr, s.RemoteBEPort, s.RemoteToken)

	remoteNames, err := client.List(ctx, s.RemoteSnapshotPath)
	if err != nil {
		return err
	}
	tablet, ok := l.engine.TabletManager().GetTablet(s.LocalTabletID)
	if !ok {
		return xerr.New(xerr.KindPathParse, "peer pull: unknown local tablet %d", s.LocalTabletID)
	}

	total := int32(len(remoteNames))
	for i, remoteName := range remoteNames {
		localName, err := pathcodec.RetargetFileName(remoteName, s.LocalTabletID)
		if err != nil {
			return err
		}
		localPath := path.Join(s.LocalSnapshotPath, localName)
		remotePath := path.Join(s.RemoteSnapshotPath, remoteName)

		size, md5, err := client.Stat(ctx, remotePath)
		if err != nil {
			return err
		}

		need, err := l.peerNeedsDownload(localPath, localName, size, md5)
		if err != nil {
			return err
		}
		if need {
			if tablet.DataDir().ReachCapacityLimit(size) {
				return xerr.New(xerr.KindCapacityExceeded, "peer pull: data dir %s cannot fit %d more bytes", tablet.DataDir().Path(), size)
			}

			started := time.Now()
			if err := client.Download(ctx, remotePath, localPath, size, "ingest_binlog"); err != nil {
				return err
			}
			elapsed := time.Since(started)

			if md5 != "" {
				sum, err := localfs.MD5Sum(localPath)
				if err != nil {
					return err
				}
				if sum != md5 {
					return xerr.New(xerr.KindChecksumMismatch, "peer pull: %s expected md5 %s, got %s", localPath, md5, sum)
				}
			}
			if err := localfs.Chmod(localPath, ownerReadWrite); err != nil {
				return err
			}

			rateKBps := float64(0)
			if elapsed > 0 {
				rateKBps = float64(size) / 1024 / elapsed.Seconds()
			}
			nlog.Infof("peer-pulled %s -> %s (%d bytes, %.1f KB/s)", remotePath, localPath, size, rateKBps)
			report.CountFile(report.TaskDownload)
		}

		if err := reporter.Every(ctx, reportEveryNFiles, int32(i+1), total, report.TaskDownload); err != nil {
			return err
		}
	}

	return l.peerPruneStray(s.LocalSnapshotPath, s.RemoteTabletID, remoteNames)
}

// peerNeedsDownload mirrors needsDownload's policy for the HTTP peer path:
// headers always refresh, everything else compares size and, when the peer
// declared one, md5; an empty declared md5 falls back to a size-only
// comparison for compatibility with older peers.
func (l *Loader) peerNeedsDownload(localPath, localName string, remoteSize int64, remoteMD5 string) (bool, error) {
	if path.Ext(localName) == ".hdr" {
		return true, nil
	}
	fi, err := os.Stat(localPath)
	if err != nil {
		return true, nil
	}
	if fi.Size() != remoteSize {
		return true, nil
	}
	if remoteMD5 == "" {
		return false, nil
	}
	sum, err := localfs.MD5Sum(localPath)
	if err != nil {
		return true, nil
	}
	return sum != remoteMD5, nil
}

func (l *Loader) peerPruneStray(localDir string, remoteTabletID int64, remoteNames []string) error {
	remoteSet := make(map[string]struct{}, len(remoteNames))
	for _, n := range remoteNames {
		remoteSet[n] = struct{}{}
	}

	localNames, err := localfs.List(localDir)
	if err != nil {
		return err
	}
	for _, name := range localNames {
		remoteName, err := pathcodec.RetargetFileName(name, remoteTabletID)
		if err != nil {
			continue
		}
		if _, ok := remoteSet[remoteName]; ok {
			continue
		}
		if err := localfs.Unlink(path.Join(localDir, name)); err != nil {
			nlog.Warningf("peer prune: failed to remove stray local file %s: %v", name, err)
		}
	}
	return nil
}
