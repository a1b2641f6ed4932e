package receiver

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/formcheck/formcheck/pkg/types"
	"github.com/formcheck/formcheck/server/internal/store"
)

// Evaluator is notified of every stored analysis record.
type Evaluator interface {
	Evaluate(rec *types.AnalysisRecord)
}

// Receiver implements rpc.ResultServiceServer.
// It validates each incoming AnalysisRecord and folds it into the session store.
type Receiver struct {
	store *store.Store
	eval  Evaluator
}

// New creates a Receiver that writes accepted records to st. eval may be nil.
func New(st *store.Store, eval Evaluator) *Receiver {
	return &Receiver{store: st, eval: eval}
}

// SendResult is the unary RPC handler called by formcheck-agent instances.
// Authentication is enforced by the gRPC server interceptor before this is called.
func (r *Receiver) SendResult(ctx context.Context, rec *types.AnalysisRecord) (*types.SendResponse, error) {
	if rec == nil {
		return nil, status.Error(codes.InvalidArgument, "empty record")
	}
	if err := rec.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	e := r.store.Put(rec)

	if rec.ErrorMessage != "" {
		slog.Debug("receiver: error record stored",
			"session_id", rec.SessionID,
			"sequence", rec.Sequence,
			"error", rec.ErrorMessage,
			"errors", e.Errors,
		)
		return &types.SendResponse{Ok: true}, nil
	}

	slog.Debug("receiver: record stored",
		"session_id", rec.SessionID,
		"sequence", rec.Sequence,
		"score", rec.FormScore,
		"valid", rec.Valid,
		"violations", len(rec.Violations),
	)
	if r.eval != nil {
		r.eval.Evaluate(rec)
	}

	return &types.SendResponse{Ok: true}, nil
}
