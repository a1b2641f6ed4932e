package rpc_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/formcheck/formcheck/pkg/pose"
	"github.com/formcheck/formcheck/pkg/rpc"
	"github.com/formcheck/formcheck/pkg/types"
)

// echoServer records every call and answers with a fixed message.
type echoServer struct {
	mu  sync.Mutex
	got []*types.AnalysisRecord
	err error
}

func (s *echoServer) SendResult(_ context.Context, in *types.AnalysisRecord) (*types.SendResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.got = append(s.got, in)
	s.mu.Unlock()
	return &types.SendResponse{Ok: true, Message: "stored " + in.SessionID}, nil
}

func (s *echoServer) records() []*types.AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.AnalysisRecord(nil), s.got...)
}

func start(t *testing.T, srv rpc.ResultServiceServer, opts ...grpc.ServerOption) rpc.ResultServiceClient {
	t.Helper()

	s := grpc.NewServer(opts...)
	rpc.RegisterResultServiceServer(s, srv)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go s.Serve(lis) //nolint:errcheck
	t.Cleanup(s.Stop)

	conn, err := grpc.Dial(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	) //nolint:staticcheck
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return rpc.NewResultServiceClient(conn)
}

func TestSendResult_RoundTrip(t *testing.T) {
	srv := &echoServer{}
	client := start(t, srv)

	deg := 91.5
	in := &types.AnalysisRecord{
		SessionID:  "s1",
		Sequence:   3,
		Angles:     map[string]*float64{"leftElbow": &deg, "rightElbow": nil},
		FormScore:  85,
		Violations: []pose.Violation{{BodyPart: "left_foot", ZoneIndex: 1}},
	}
	resp, err := client.SendResult(context.Background(), in)
	if err != nil {
		t.Fatalf("SendResult: %v", err)
	}
	if !resp.Ok || resp.Message != "stored s1" {
		t.Errorf("response = %+v, want ok with message", resp)
	}

	recs := srv.records()
	if len(recs) != 1 {
		t.Fatalf("server received %d records, want 1", len(recs))
	}
	got := recs[0]
	if a, ok := got.Angle("leftElbow"); !ok || a != 91.5 {
		t.Errorf("leftElbow = %v (measured %v), want 91.5", a, ok)
	}
	if _, ok := got.Angle("rightElbow"); ok {
		t.Error("rightElbow should stay unmeasurable")
	}
	if len(got.Violations) != 1 || got.Violations[0].ZoneIndex != 1 {
		t.Errorf("violations = %+v", got.Violations)
	}
}

func TestSendResult_ServerErrorKeepsStatus(t *testing.T) {
	client := start(t, &echoServer{err: status.Error(codes.InvalidArgument, "bad record")})

	_, err := client.SendResult(context.Background(), &types.AnalysisRecord{SessionID: "s1"})
	if code := status.Code(err); code != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", code)
	}
}

func TestSendResult_InterceptorSeesMethod(t *testing.T) {
	var method string
	var sawRecord bool
	intercept := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		method = info.FullMethod
		_, sawRecord = req.(*types.AnalysisRecord)
		return handler(ctx, req)
	}
	client := start(t, &echoServer{}, grpc.UnaryInterceptor(intercept))

	if _, err := client.SendResult(context.Background(), &types.AnalysisRecord{SessionID: "s1"}); err != nil {
		t.Fatalf("SendResult: %v", err)
	}
	if method != rpc.SendResultMethod {
		t.Errorf("FullMethod = %q, want %q", method, rpc.SendResultMethod)
	}
	if !sawRecord {
		t.Error("interceptor did not receive an *AnalysisRecord")
	}
}

func TestSendResult_InterceptorCanReject(t *testing.T) {
	srv := &echoServer{}
	reject := func(context.Context, any, *grpc.UnaryServerInfo, grpc.UnaryHandler) (any, error) {
		return nil, status.Error(codes.Unauthenticated, "no")
	}
	client := start(t, srv, grpc.UnaryInterceptor(reject))

	_, err := client.SendResult(context.Background(), &types.AnalysisRecord{SessionID: "s1"})
	if code := status.Code(err); code != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", code)
	}
	if len(srv.records()) != 0 {
		t.Error("rejected call reached the server")
	}
}

func TestSendResult_CancelledContext(t *testing.T) {
	client := start(t, &echoServer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SendResult(ctx, &types.AnalysisRecord{SessionID: "s1"})
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if code := status.Code(err); code != codes.Canceled && !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want Canceled", err)
	}
}
