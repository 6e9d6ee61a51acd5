// Package main for the `snaptransferd` executable: a thin CLI wrapper
// that runs a single upload task against a configured remote backend,
// the way an operator would invoke it out-of-band of the coordinator for
// testing a backend's reachability.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vortexdb/snaptransfer/internal/nlog"
	"github.com/vortexdb/snaptransfer/loader"
	"github.com/vortexdb/snaptransfer/locksvc"
	"github.com/vortexdb/snaptransfer/remotefs"
	"github.com/vortexdb/snaptransfer/report"
)

func main() {
	var (
		jobID      int64
		taskID     int64
		brokerAddr string
		coordAddr  string
		backend    string
		location   string
		provider   string
		pairsFlag  string
		logDir     string
	)

	fs := flag.NewFlagSet("snaptransferd", flag.ExitOnError)
	fs.Int64Var(&jobID, "job-id", 0, "coordinator-assigned job id")
	fs.Int64Var(&taskID, "task-id", 0, "coordinator-assigned task id")
	fs.StringVar(&brokerAddr, "broker-addr", "", "broker process address (broker backend only)")
	fs.StringVar(&coordAddr, "coord-addr", "", "coordinator gRPC address for progress reports; empty disables reporting")
	fs.StringVar(&backend, "backend", "object-store", "remote backend kind: object-store | broker | distributed-fs")
	fs.StringVar(&location, "location", "", "backend location, e.g. s3://bucket or gs://bucket")
	fs.StringVar(&provider, "provider", "", "object-store provider: s3 (default) | azure")
	fs.StringVar(&pairsFlag, "pairs", "", "comma-separated src=dest local/remote directory pairs")
	fs.StringVar(&logDir, "log-dir", "", "directory for log files; empty logs to stderr only")
	nlog.InitFlags(fs)
	fs.Parse(os.Args[1:])

	nlog.SetLogDir(logDir)

	pairs, err := parsePairs(pairsFlag)
	if err != nil {
		nlog.Errorf("snaptransferd: %v", err)
		os.Exit(1)
	}

	coord, closeCoord := buildCoordinator(coordAddr)
	if closeCoord != nil {
		defer closeCoord()
	}

	ld := loader.New(jobID, taskID, brokerAddr, map[string]string{"provider": provider}, locksvc.New(), coord, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	kind := remotefs.Kind(backend)
	if err := ld.Init(ctx, kind, location); err != nil {
		nlog.Errorf("snaptransferd: init: %v", err)
		os.Exit(1)
	}

	manifest, err := ld.Upload(ctx, pairs)
	if err != nil {
		nlog.Errorf("snaptransferd: upload: %v", err)
		os.Exit(1)
	}
	for tabletID, names := range manifest {
		fmt.Printf("tablet %d: %d files\n", tabletID, len(names))
	}
}

func parsePairs(spec string) ([]loader.TabletSnapshotPathPair, error) {
	if spec == "" {
		return nil, fmt.Errorf("at least one -pairs entry is required")
	}
	var out []loader.TabletSnapshotPathPair
	for _, entry := range strings.Split(spec, ",") {
		kv := strings.SplitN(entry, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return nil, fmt.Errorf("malformed pair %q, want src=dest", entry)
		}
		out = append(out, loader.TabletSnapshotPathPair{SrcDir: kv[0], DestDir: kv[1]})
	}
	return out, nil
}

// buildCoordinator dials the coordinator if an address was given, otherwise
// returns a coordinator that always reports OK so local dry runs don't need
// one running.
func buildCoordinator(addr string) (report.Coordinator, func()) {
	if addr == "" {
		return noopCoordinator{}, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		nlog.Errorf("snaptransferd: dial coordinator %s: %v, falling back to no-op reporting", addr, err)
		return noopCoordinator{}, nil
	}
	return report.NewGRPCCoordinator(conn), func() { conn.Close() }
}

type noopCoordinator struct{}

func (noopCoordinator) Report(context.Context, report.Progress) (report.StatusCode, error) {
	return report.StatusOK, nil
}
