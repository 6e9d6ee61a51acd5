package report

import (
	"context"

	"google.golang.org/grpc"

	_ "github.com/vortexdb/snaptransfer/internal/codec" // registers the "json" grpc codec
)

// GRPCCoordinator calls the frontend's SnapshotLoaderReport RPC over a
// long-lived grpc.ClientConn, using the same JSON codec as the broker
// remote-fs client so both internal RPC surfaces share one wire format.
type GRPCCoordinator struct {
	conn *grpc.ClientConn
}

func NewGRPCCoordinator(conn *grpc.ClientConn) *GRPCCoordinator {
	return &GRPCCoordinator{conn: conn}
}

type reportReq struct {
	JobID       int64    `json:"job_id"`
	TaskID      int64    `json:"task_id"`
	TaskKind    TaskKind `json:"task_kind"`
	FinishedNum int32    `json:"finished_num"`
	TotalNum    int32    `json:"total_num"`
}

type reportResp struct {
	StatusCode StatusCode `json:"status_code"`
}

func (c *GRPCCoordinator) Report(ctx context.Context, p Progress) (StatusCode, error) {
	req := &reportReq{
		JobID: p.JobID, TaskID: p.TaskID, TaskKind: p.TaskKind,
		FinishedNum: p.FinishedNum, TotalNum: p.TotalNum,
	}
	resp := &reportResp{}
	err := c.conn.Invoke(ctx, "/coordinator.Frontend/SnapshotLoaderReport", req, resp, grpc.CallContentSubtype("json"))
	if err != nil {
		return StatusOK, err
	}
	return resp.StatusCode, nil
}
