package loader

import (
	"context"
	"path"

	"github.com/vortexdb/snaptransfer/internal/diskstat"
	"github.com/vortexdb/snaptransfer/internal/nlog"
	"github.com/vortexdb/snaptransfer/internal/xerr"
	"github.com/vortexdb/snaptransfer/localfs"
	"github.com/vortexdb/snaptransfer/pathcodec"
	"github.com/vortexdb/snaptransfer/remotefs"
	"github.com/vortexdb/snaptransfer/report"
)

// Download pulls each pair's remote snapshot directory into its local
// counterpart, retargeting file names from the remote tablet id to the
// local one, then prunes local files the remote no longer has.
func (l *Loader) Download(ctx context.Context, pairs []TabletSnapshotPathPair) error {
	if l.remoteFS == nil {
		return xerr.New(xerr.KindBackendUninitialized, "download: remote fs backend not initialized")
	}

	reporter := report.New(l.coord, l.JobID, l.TaskID)
	if err := reporter.Every(ctx, 0, 0, 0, report.TaskDownload); err != nil {
		return err
	}

	before, _ := diskstat.Sample()
	for _, p := range pairs {
		if err := l.downloadOne(ctx, reporter, p); err != nil {
			return err
		}
	}
	if after, err := diskstat.Sample(); err == nil {
		d := after.Delta(before)
		nlog.Infof("download job=%d task=%d disk read=%d write=%d bytes", l.JobID, l.TaskID, d.ReadBytes, d.WriteBytes)
	}
	return nil
}

func (l *Loader) downloadOne(ctx context.Context, reporter *report.Reporter, p TabletSnapshotPathPair) error {
	guard := l.locks.Acquire(p.DestDir)
	defer guard.Release()

	localTabletID, _, err := pathcodec.LocalTabletPath(p.DestDir)
	if err != nil {
		return err
	}
	remoteTabletID, err := pathcodec.RemoteTabletID(p.SrcDir)
	if err != nil {
		return err
	}

	remoteHave, err := remotefs.ListChecksummed(ctx, l.remoteFS, p.SrcDir)
	if err != nil {
		return err
	}
	if len(remoteHave) == 0 {
		return xerr.New(xerr.KindEmptyRemote, "download: remote snapshot dir is empty: %s", p.SrcDir)
	}

	tablet, ok := l.engine.TabletManager().GetTablet(localTabletID)
	if !ok {
		return xerr.New(xerr.KindPathParse, "download: unknown local tablet %d", localTabletID)
	}

	total := int32(len(remoteHave))
	i := int32(0)
	for remoteName, stat := range remoteHave {
		i++
		localName, err := pathcodec.RetargetFileName(remoteName, localTabletID)
		if err != nil {
			return err
		}
		localPath := path.Join(p.DestDir, localName)

		need, err := needsDownload(localPath, localName, stat)
		if err != nil {
			return err
		}
		if need {
			if tablet.DataDir().ReachCapacityLimit(int64(stat.Size)) {
				return xerr.New(xerr.KindCapacityExceeded, "download: data dir %s cannot fit %d more bytes", tablet.DataDir().Path(), stat.Size)
			}
			remotePath := path.Join(p.SrcDir, remoteName+"."+stat.MD5)
			if err := l.remoteFS.Download(ctx, remotePath, localPath); err != nil {
				return err
			}
			sum, err := localfs.MD5Sum(localPath)
			if err != nil {
				return err
			}
			if sum != stat.MD5 {
				return xerr.New(xerr.KindChecksumMismatch, "download: %s expected md5 %s, got %s", localPath, stat.MD5, sum)
			}
			nlog.Infof("downloaded %s -> %s", remotePath, localPath)
			report.CountFile(report.TaskDownload)
		}

		if err := reporter.Every(ctx, reportEveryNFiles, i, total, report.TaskDownload); err != nil {
			return err
		}
	}

	return l.pruneStray(p.DestDir, remoteTabletID, remoteHave, localTabletID)
}

// needsDownload reports whether localPath must be (re)pulled: header files
// are always refreshed since they carry the tablet's live rowset list,
// everything else is skipped only when present with a matching md5.
func needsDownload(localPath, localName string, remote remotefs.ChecksumStat) (bool, error) {
	if path.Ext(localName) == ".hdr" {
		return true, nil
	}
	sum, err := localfs.MD5Sum(localPath)
	if err != nil {
		return true, nil // missing or unreadable: treat as needing download
	}
	return sum != remote.MD5, nil
}

// pruneStray removes local files whose remote-namespace counterpart no
// longer exists, best-effort -- an unlink failure here is logged and does
// not fail the download, matching the source's cleanup-is-advisory stance.
func (l *Loader) pruneStray(destDir string, remoteTabletID int64, remoteHave map[string]remotefs.ChecksumStat, localTabletID int64) error {
	localNames, err := localfs.List(destDir)
	if err != nil {
		return err
	}
	for _, name := range localNames {
		remoteName, err := pathcodec.RetargetFileName(name, remoteTabletID)
		if err != nil {
			continue
		}
		if _, ok := remoteHave[remoteName]; ok {
			continue
		}
		if err := localfs.Unlink(path.Join(destDir, name)); err != nil {
			nlog.Warningf("prune: failed to remove stray local file %s: %v", name, err)
		}
	}
	return nil
}
