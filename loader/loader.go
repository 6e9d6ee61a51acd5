// Package loader implements the Snapshot Transfer Engine's job-scoped
// Loader: the four top-level operations (upload, download,
// remote_http_download, move) and the orchestrators behind them. A Loader
// is constructed once per coordinator-assigned task and is single-threaded
// from the caller's perspective; the coordinator may cancel it
// cooperatively via the Progress/Cancellation Reporter.
package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"cloud.google.com/go/storage"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vortexdb/snaptransfer/engine"
	"github.com/vortexdb/snaptransfer/internal/xerr"
	"github.com/vortexdb/snaptransfer/locksvc"
	"github.com/vortexdb/snaptransfer/remotefs"
	"github.com/vortexdb/snaptransfer/report"
)

// Loader owns {job_id, task_id, broker_addr, backend_props, remote_fs,
// env}. Lifetime spans a single coordinator-assigned task.
type Loader struct {
	JobID        int64
	TaskID       int64
	BrokerAddr   string
	BackendProps map[string]string

	locks  *locksvc.Registry
	coord  report.Coordinator
	engine engine.StorageEngine

	remoteFS remotefs.FS
}

// New constructs a Loader for one task. locks is normally a single
// process-wide *locksvc.Registry shared by every Loader in the process;
// coord and eng are the coordinator RPC client and storage-engine
// collaborator set.
func New(jobID, taskID int64, brokerAddr string, backendProps map[string]string, locks *locksvc.Registry, coord report.Coordinator, eng engine.StorageEngine) *Loader {
	return &Loader{
		JobID:        jobID,
		TaskID:       taskID,
		BrokerAddr:   brokerAddr,
		BackendProps: backendProps,
		locks:        locks,
		coord:        coord,
		engine:       eng,
	}
}

// SetRemoteFS injects an already-built remote adapter, bypassing Init's
// backend construction. Tests and callers that manage their own client
// lifecycles use this instead of Init.
func (l *Loader) SetRemoteFS(fs remotefs.FS) { l.remoteFS = fs }

// Init selects and configures the Remote FS Adapter for this task. kind
// must be one of remotefs.KindObjectStore, remotefs.KindBroker, or
// remotefs.KindDistributedFS; location is a backend-specific URI (an
// "s3://" or "azure://" container URL for object-store, a "gs://" bucket
// for distributed-fs, or a broker process address for broker).
//
// BackendProps["provider"] selects between object-store providers: "azure"
// for Azure Blob, anything else (including unset) for S3.
func (l *Loader) Init(ctx context.Context, kind remotefs.Kind, location string) error {
	fs, err := l.buildRemoteFS(ctx, kind, location)
	if err != nil {
		return err
	}
	l.remoteFS = fs
	return nil
}

func (l *Loader) buildRemoteFS(ctx context.Context, kind remotefs.Kind, location string) (remotefs.FS, error) {
	switch kind {
	case remotefs.KindObjectStore:
		if strings.EqualFold(l.BackendProps["provider"], "azure") {
			return l.buildAzureFS(location)
		}
		return l.buildS3FS(ctx, location)
	case remotefs.KindBroker:
		return l.buildBrokerFS(ctx)
	case remotefs.KindDistributedFS:
		return l.buildGCSFS(ctx, location)
	default:
		return nil, xerr.New(xerr.KindIO, "unknown storage backend kind: %s", kind)
	}
}

func (l *Loader) buildS3FS(ctx context.Context, location string) (remotefs.FS, error) {
	bucket, _ := splitObjectStoreURI(location, "s3://")
	if bucket == "" {
		return nil, xerr.New(xerr.KindPathParse, "invalid s3 location: %s", location)
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if region := l.BackendProps["region"]; region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if ak, sk := l.BackendProps["access_key"], l.BackendProps["secret_key"]; ak != "" && sk != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, l.BackendProps["session_token"]),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "load aws config")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := l.BackendProps["endpoint"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return remotefs.NewObjectStoreFS(client, bucket), nil
}

// buildAzureFS wires the azure:// object-store provider. BackendProps must
// carry "account_name" and "account_key" (Shared Key auth); "endpoint"
// overrides the default "https://<account>.blob.core.windows.net/" service
// URL, the same override this factory offers S3 for pointing at an
// on-prem or test emulator.
func (l *Loader) buildAzureFS(location string) (remotefs.FS, error) {
	container, _ := splitObjectStoreURI(location, "azure://")
	if container == "" {
		return nil, xerr.New(xerr.KindPathParse, "invalid azure location: %s", location)
	}

	account, key := l.BackendProps["account_name"], l.BackendProps["account_key"]
	if account == "" || key == "" {
		return nil, xerr.New(xerr.KindBackendUninitialized, "azure object-store requires backend_props[account_name] and [account_key]")
	}
	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "build azure shared key credential")
	}

	serviceURL := l.BackendProps["endpoint"]
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "create azure blob client")
	}
	return remotefs.NewAzureBlobFS(client, container), nil
}

func (l *Loader) buildGCSFS(ctx context.Context, location string) (remotefs.FS, error) {
	bucket, _ := splitObjectStoreURI(location, "gs://")
	if bucket == "" {
		return nil, xerr.New(xerr.KindPathParse, "invalid gs location: %s", location)
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "create gcs client")
	}
	return remotefs.NewDistributedFS(client, bucket), nil
}

func (l *Loader) buildBrokerFS(ctx context.Context) (remotefs.FS, error) {
	if l.BrokerAddr == "" {
		return nil, xerr.New(xerr.KindBackendUninitialized, "broker kind requires a non-empty broker address")
	}
	conn, err := grpc.NewClient(l.BrokerAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "dial broker at %s", l.BrokerAddr)
	}
	return remotefs.NewBroker(conn), nil
}

// splitObjectStoreURI strips scheme and returns (bucket, keyPrefix) for a
// "<scheme>bucket[/prefix]" URI.
func splitObjectStoreURI(location, scheme string) (bucket, prefix string) {
	trimmed := strings.TrimPrefix(location, scheme)
	if trimmed == location && !strings.Contains(location, "://") {
		// bare bucket name, no scheme supplied
	} else if trimmed == location {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return bucket, prefix
}
