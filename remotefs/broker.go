package remotefs

import (
	"context"

	"google.golang.org/grpc"

	_ "github.com/vortexdb/snaptransfer/internal/codec" // registers the "json" grpc codec
	"github.com/vortexdb/snaptransfer/internal/xerr"
)

// Broker proxies file operations through a separate broker process over
// gRPC, the way Doris's BE delegates HDFS/object access it cannot reach
// directly to a sidecar broker service. Its uploads are not atomic (the
// broker writes through to its own backend), so UploadChecksummed stages
// to ".part" and renames, same as DistributedFS.
type Broker struct {
	conn *grpc.ClientConn
}

// NewBroker wraps an already-dialed connection as a broker-kind FS. The
// broker speaks four RPCs -- List, Upload, Download, Rename -- invoked generically
// via conn.Invoke with the registered JSON codec rather than
// protoc-generated stubs, since the broker protocol here is a thin,
// internal file-ops surface rather than a versioned public API.
func NewBroker(conn *grpc.ClientConn) *Broker {
	return &Broker{conn: conn}
}

func (b *Broker) Kind() Kind { return KindBroker }

type brokerListReq struct {
	Dir string `json:"dir"`
}

type brokerListResp struct {
	Files []FileInfo `json:"files"`
}

func (b *Broker) List(ctx context.Context, dir string) ([]FileInfo, error) {
	req := &brokerListReq{Dir: dir}
	resp := &brokerListResp{}
	if err := b.conn.Invoke(ctx, "/broker.FileBroker/List", req, resp, grpc.CallContentSubtype("json")); err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "broker list %s", dir)
	}
	return resp.Files, nil
}

type brokerUploadReq struct {
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"remote_path"`
}

type brokerAck struct{}

func (b *Broker) Upload(ctx context.Context, localPath, remotePath string) error {
	req := &brokerUploadReq{LocalPath: localPath, RemotePath: remotePath}
	resp := &brokerAck{}
	if err := b.conn.Invoke(ctx, "/broker.FileBroker/Upload", req, resp, grpc.CallContentSubtype("json")); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "broker upload %s", remotePath)
	}
	return nil
}

type brokerDownloadReq struct {
	RemotePath string `json:"remote_path"`
	LocalPath  string `json:"local_path"`
}

func (b *Broker) Download(ctx context.Context, remotePath, localPath string) error {
	req := &brokerDownloadReq{RemotePath: remotePath, LocalPath: localPath}
	resp := &brokerAck{}
	if err := b.conn.Invoke(ctx, "/broker.FileBroker/Download", req, resp, grpc.CallContentSubtype("json")); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "broker download %s", remotePath)
	}
	return nil
}

type brokerRenameReq struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (b *Broker) Rename(ctx context.Context, from, to string) error {
	req := &brokerRenameReq{From: from, To: to}
	resp := &brokerAck{}
	if err := b.conn.Invoke(ctx, "/broker.FileBroker/Rename", req, resp, grpc.CallContentSubtype("json")); err != nil {
		return xerr.Wrap(xerr.KindIO, err, "broker rename %s -> %s", from, to)
	}
	return nil
}
