package loader

// TabletSnapshotPathPair names one tablet's source and destination
// directories for a single upload or download call. Both are flat
// directories of files named "<tablet_id>.hdr" and
// "<tablet_id>_<...>.{idx,dat}".
type TabletSnapshotPathPair struct {
	SrcDir  string
	DestDir string
}

// RemoteTabletSnapshot names one peer-pull: the coordinates of a tablet
// snapshot sitting on another database node, and where it lands locally.
type RemoteTabletSnapshot struct {
	RemoteBEAddr       string
	RemoteBEPort       int
	RemoteToken        string
	RemoteSnapshotPath string
	RemoteTabletID     int64
	LocalSnapshotPath  string
	LocalTabletID      int64
}

// Manifest is upload's per-tablet result: the tablet id to the list of
// "<file>.<md5>" names it now owns on the remote side.
type Manifest map[int64][]string
