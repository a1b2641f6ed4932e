package receiver_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/formcheck/formcheck/pkg/pose"
	"github.com/formcheck/formcheck/pkg/rpc"
	"github.com/formcheck/formcheck/pkg/types"
	"github.com/formcheck/formcheck/server/internal/auth"
	"github.com/formcheck/formcheck/server/internal/receiver"
	"github.com/formcheck/formcheck/server/internal/store"
)

// recordingEvaluator remembers every record it was handed.
type recordingEvaluator struct {
	mu   sync.Mutex
	seen []*types.AnalysisRecord
}

func (r *recordingEvaluator) Evaluate(rec *types.AnalysisRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, rec)
}

func (r *recordingEvaluator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// startServer starts a gRPC server with the given interceptor and returns a
// connected client. Uses a random TCP port.
func startServer(t *testing.T, interceptor grpc.UnaryServerInterceptor, eval receiver.Evaluator) (rpc.ResultServiceClient, *store.Store) {
	t.Helper()

	st := store.New(5 * time.Minute)
	rec := receiver.New(st, eval)

	srv := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	rpc.RegisterResultServiceServer(srv, rec)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go srv.Serve(lis) //nolint:errcheck

	t.Cleanup(func() {
		srv.Stop()
		lis.Close()
	})

	conn, err := grpc.Dial(lis.Addr().String(), //nolint:staticcheck
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return rpc.NewResultServiceClient(conn), st
}

// allowAll is a no-op interceptor that passes every call through.
func allowAll(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	return handler(ctx, req)
}

func record(id string, score int) *types.AnalysisRecord {
	deg := 91.5
	return &types.AnalysisRecord{
		SessionID:  id,
		Exercise:   "default",
		Sequence:   1,
		Angles:     map[string]*float64{"leftElbow": &deg, "rightElbow": nil},
		FormScore:  score,
		Valid:      score >= 70,
		Violations: []pose.Violation{},
	}
}

func TestSendResult_StoresRecord(t *testing.T) {
	eval := &recordingEvaluator{}
	client, st := startServer(t, allowAll, eval)

	resp, err := client.SendResult(context.Background(), record("patient-7", 92))
	if err != nil {
		t.Fatalf("SendResult: %v", err)
	}
	if !resp.Ok {
		t.Errorf("Ok: got false, want true")
	}

	e, ok := st.Get("patient-7")
	if !ok {
		t.Fatal("store.Get: expected entry, got none")
	}
	if e.Record.FormScore != 92 {
		t.Errorf("FormScore: got %d, want 92", e.Record.FormScore)
	}
	if deg, ok := e.Record.Angle("leftElbow"); !ok || deg != 91.5 {
		t.Errorf("leftElbow: got %v (%v), want 91.5", deg, ok)
	}
	if _, ok := e.Record.Angle("rightElbow"); ok {
		t.Error("rightElbow: want unmeasured after round trip")
	}
	if eval.count() != 1 {
		t.Errorf("evaluator saw %d records, want 1", eval.count())
	}
}

func TestSendResult_Invalid_InvalidArgument(t *testing.T) {
	tests := []struct {
		name string
		rec  *types.AnalysisRecord
	}{
		{"missing session", &types.AnalysisRecord{FormScore: 50}},
		{"score above range", record("s", 140)},
		{"negative zone index", &types.AnalysisRecord{
			SessionID:  "s",
			Violations: []pose.Violation{{BodyPart: "left_hand", ZoneIndex: -1}},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, st := startServer(t, allowAll, nil)
			_, err := client.SendResult(context.Background(), tc.rec)
			if code := status.Code(err); code != codes.InvalidArgument {
				t.Errorf("code: got %v, want InvalidArgument", code)
			}
			if st.Count() != 0 {
				t.Errorf("store.Count: got %d, want 0", st.Count())
			}
		})
	}
}

func TestSendResult_ErrorRecordSkipsEvaluator(t *testing.T) {
	eval := &recordingEvaluator{}
	client, st := startServer(t, allowAll, eval)

	_, err := client.SendResult(context.Background(), &types.AnalysisRecord{
		SessionID:    "s",
		ErrorMessage: "decode frame: unexpected EOF",
	})
	if err != nil {
		t.Fatalf("SendResult: %v", err)
	}
	e, _ := st.Get("s")
	if e.Errors != 1 {
		t.Errorf("Errors: got %d, want 1", e.Errors)
	}
	if eval.count() != 0 {
		t.Errorf("evaluator saw %d records, want 0", eval.count())
	}
}

func TestSendResult_UpdateExistingSession(t *testing.T) {
	client, st := startServer(t, allowAll, nil)

	ctx := context.Background()
	if _, err := client.SendResult(ctx, record("s", 90)); err != nil {
		t.Fatalf("first SendResult: %v", err)
	}
	if _, err := client.SendResult(ctx, record("s", 40)); err != nil {
		t.Fatalf("second SendResult: %v", err)
	}

	if st.Count() != 1 {
		t.Errorf("store.Count: got %d, want 1 (updates, not appends)", st.Count())
	}
	e, _ := st.Get("s")
	if e.Record.FormScore != 40 || e.Frames != 2 || e.ValidFrames != 1 {
		t.Errorf("entry: score=%d frames=%d valid=%d", e.Record.FormScore, e.Frames, e.ValidFrames)
	}
}

func TestSendResult_WithAPIKeyInterceptor_CorrectKey_Passes(t *testing.T) {
	i := auth.APIKeyInterceptor("apikey", "x-api-key", "testkey")
	client, st := startServer(t, i, nil)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "testkey")
	if _, err := client.SendResult(ctx, record("s", 90)); err != nil {
		t.Fatalf("SendResult with correct key: %v", err)
	}
	if st.Count() != 1 {
		t.Errorf("store.Count: got %d, want 1", st.Count())
	}
}

func TestSendResult_WithAPIKeyInterceptor_WrongKey_Rejected(t *testing.T) {
	i := auth.APIKeyInterceptor("apikey", "x-api-key", "testkey")
	client, _ := startServer(t, i, nil)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "wrongkey")
	_, err := client.SendResult(ctx, record("s", 90))
	if code := status.Code(err); code != codes.Unauthenticated {
		t.Errorf("code: got %v, want Unauthenticated", code)
	}
}

func TestSendResult_WithAPIKeyInterceptor_MissingKey_Rejected(t *testing.T) {
	i := auth.APIKeyInterceptor("apikey", "x-api-key", "testkey")
	client, _ := startServer(t, i, nil)

	_, err := client.SendResult(context.Background(), record("s", 90))
	if code := status.Code(err); code != codes.Unauthenticated {
		t.Errorf("code: got %v, want Unauthenticated", code)
	}
}
