// Package report implements the Progress/Cancellation Reporter (C7):
// coalesced progress RPCs to the coordinator, and the sole channel through
// which a running transfer notices it has been cancelled.
package report

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vortexdb/snaptransfer/internal/nlog"
	"github.com/vortexdb/snaptransfer/internal/xerr"
)

// TaskKind matches the coordinator's snapshotLoaderReport task_type field.
type TaskKind string

const (
	TaskUpload   TaskKind = "UPLOAD"
	TaskDownload TaskKind = "DOWNLOAD"
)

// StatusCode mirrors the coordinator RPC's status_code field; only
// CANCELLED is meaningful to this engine, everything else is treated as OK.
type StatusCode int

const (
	StatusOK        StatusCode = 0
	StatusCancelled StatusCode = 1
)

// Progress is what gets sent on each coalesced report.
type Progress struct {
	JobID       int64
	TaskID      int64
	TaskKind    TaskKind
	FinishedNum int32
	TotalNum    int32
}

// Coordinator is the RPC surface this engine calls to report progress. A
// transport failure must be swallowed by the caller (see Reporter.Every);
// Coordinator implementations should return the transport error verbatim
// rather than trying to interpret it.
type Coordinator interface {
	Report(ctx context.Context, p Progress) (StatusCode, error)
}

var (
	filesTransferred = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snaptransfer",
		Name:      "files_transferred_total",
		Help:      "Files transferred by the snapshot transfer engine, by task kind.",
	}, []string{"task_kind"})

	reportsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "snaptransfer",
		Name:      "coordinator_reports_total",
		Help:      "Progress reports sent to the coordinator, by outcome.",
	}, []string{"outcome"})
)

// MustRegister registers this package's collectors with reg. Call once at
// process startup; a nil reg registers with prometheus's default registry.
func MustRegister(reg *prometheus.Registry) {
	if reg == nil {
		prometheus.MustRegister(filesTransferred, reportsSent)
		return
	}
	reg.MustRegister(filesTransferred, reportsSent)
}

// Reporter batches per-file progress and flushes to the coordinator once
// more than threshold calls have accumulated, or immediately when
// threshold is 0 -- used once at the top of upload/download/peer-pull as
// an unconditional cancellation probe before any work starts.
type Reporter struct {
	coord   Coordinator
	jobID   int64
	taskID  int64
	counter int
}

func New(coord Coordinator, jobID, taskID int64) *Reporter {
	return &Reporter{coord: coord, jobID: jobID, taskID: taskID}
}

// Every increments the internal counter and, once it exceeds threshold,
// synchronously reports {finished, total} and resets. It returns a
// cancelled error only if the coordinator explicitly said so; any RPC
// transport failure is swallowed (returns nil) since transient coordinator
// loss must not abort a long-running transfer.
func (r *Reporter) Every(ctx context.Context, threshold int, finished, total int32, kind TaskKind) error {
	r.counter++
	if r.counter <= threshold {
		return nil
	}

	nlog.Infof("report to coordinator: job=%d task=%d finished=%d total=%d", r.jobID, r.taskID, finished, total)
	status, err := r.coord.Report(ctx, Progress{
		JobID: r.jobID, TaskID: r.taskID, TaskKind: kind,
		FinishedNum: finished, TotalNum: total,
	})
	if err != nil {
		reportsSent.WithLabelValues("transport_error").Inc()
		return nil
	}
	r.counter = 0

	if status == StatusCancelled {
		reportsSent.WithLabelValues("cancelled").Inc()
		nlog.Infof("job cancelled by coordinator: job=%d task=%d", r.jobID, r.taskID)
		return xerr.New(xerr.KindCancelled, "job %d task %d cancelled by coordinator", r.jobID, r.taskID)
	}
	reportsSent.WithLabelValues("ok").Inc()
	return nil
}

// CountFile records one more transferred file in the process's metrics,
// independent of when the next coordinator report fires.
func CountFile(kind TaskKind) {
	filesTransferred.WithLabelValues(string(kind)).Inc()
}
