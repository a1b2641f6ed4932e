package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/formcheck/formcheck/pkg/types"
)

// Fully qualified names of the service and its method.
const (
	ServiceName      = "formcheck.v1.ResultService"
	SendResultMethod = "/" + ServiceName + "/SendResult"
)

// ResultServiceServer is implemented by the server-side receiver.
type ResultServiceServer interface {
	SendResult(context.Context, *types.AnalysisRecord) (*types.SendResponse, error)
}

// RegisterResultServiceServer registers srv with s.
func RegisterResultServiceServer(s grpc.ServiceRegistrar, srv ResultServiceServer) {
	s.RegisterService(&resultServiceDesc, srv)
}

var resultServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResultServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendResult", Handler: sendResultHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "formcheck/v1/result",
}

func sendResultHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(types.AnalysisRecord)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ResultServiceServer).SendResult(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendResultMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ResultServiceServer).SendResult(ctx, req.(*types.AnalysisRecord))
	}
	return interceptor(ctx, in, info, handler)
}

// ResultServiceClient sends records to a ResultService.
type ResultServiceClient interface {
	SendResult(ctx context.Context, in *types.AnalysisRecord, opts ...grpc.CallOption) (*types.SendResponse, error)
}

type resultServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewResultServiceClient returns a client that encodes every call as JSON.
func NewResultServiceClient(cc grpc.ClientConnInterface) ResultServiceClient {
	return &resultServiceClient{cc: cc}
}

func (c *resultServiceClient) SendResult(ctx context.Context, in *types.AnalysisRecord, opts ...grpc.CallOption) (*types.SendResponse, error) {
	out := new(types.SendResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, SendResultMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
