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

const reportEveryNFiles = 10

// Upload pushes each pair's local snapshot directory to its remote
// counterpart, skipping files the remote already holds under a matching
// checksum, and returns the checksummed names now owned per tablet.
func (l *Loader) Upload(ctx context.Context, pairs []TabletSnapshotPathPair) (Manifest, error) {
	if l.remoteFS == nil {
		return nil, xerr.New(xerr.KindBackendUninitialized, "upload: remote fs backend not initialized")
	}

	reporter := report.New(l.coord, l.JobID, l.TaskID)
	if err := reporter.Every(ctx, 0, 0, 0, report.TaskUpload); err != nil {
		return nil, err
	}

	for _, p := range pairs {
		if ok, err := localfs.IsDir(p.SrcDir); err != nil {
			return nil, err
		} else if !ok {
			return nil, xerr.New(xerr.KindPathParse, "upload: local snapshot dir does not exist: %s", p.SrcDir)
		}
	}

	before, _ := diskstat.Sample()

	manifest := make(Manifest, len(pairs))
	for _, p := range pairs {
		tabletID, _, err := pathcodec.LocalTabletPath(p.SrcDir)
		if err != nil {
			return nil, err
		}

		names, err := l.uploadOne(ctx, reporter, p, tabletID)
		if err != nil {
			return nil, err
		}
		manifest[tabletID] = names
	}

	if after, err := diskstat.Sample(); err == nil {
		d := after.Delta(before)
		nlog.Infof("upload job=%d task=%d disk read=%d write=%d bytes", l.JobID, l.TaskID, d.ReadBytes, d.WriteBytes)
	}
	return manifest, nil
}

func (l *Loader) uploadOne(ctx context.Context, reporter *report.Reporter, p TabletSnapshotPathPair, tabletID int64) ([]string, error) {
	guard := l.locks.Acquire(p.SrcDir)
	defer guard.Release()

	remoteHave, err := remotefs.ListChecksummed(ctx, l.remoteFS, p.DestDir)
	if err != nil {
		return nil, err
	}
	localNames, err := localfs.List(p.SrcDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(localNames))
	total := int32(len(localNames))
	for i, name := range localNames {
		localPath := path.Join(p.SrcDir, name)
		sum, err := localfs.MD5Sum(localPath)
		if err != nil {
			return nil, err
		}

		if have, ok := remoteHave[name]; ok && have.MD5 == sum {
			names = append(names, name+"."+sum)
		} else {
			remotePath := path.Join(p.DestDir, name)
			if err := remotefs.UploadChecksummed(ctx, l.remoteFS, localPath, remotePath, sum); err != nil {
				return nil, err
			}
			nlog.Infof("uploaded %s -> %s.%s", localPath, remotePath, sum)
			report.CountFile(report.TaskUpload)
			names = append(names, name+"."+sum)
		}

		if err := reporter.Every(ctx, reportEveryNFiles, int32(i+1), total, report.TaskUpload); err != nil {
			return nil, err
		}
	}
	return names, nil
}
