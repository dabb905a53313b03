package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const executiveServiceName = "gladys.executive.Executive"

// ExecutiveServer is the server-side contract for spec §6's Executive
// RPC surface.
type ExecutiveServer interface {
	ProcessEvent(ctx context.Context, req *ProcessEventRequest) (*ProcessEventResponse, error)
	ProvideFeedback(ctx context.Context, req *ProvideFeedbackRequest) (*ProvideFeedbackResponse, error)
}

func execUnary[Req, Resp any](call func(ExecutiveServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExecutiveServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: executiveServiceName}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExecutiveServer), ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

var ExecutiveServiceDesc = grpc.ServiceDesc{
	ServiceName: executiveServiceName,
	HandlerType: (*ExecutiveServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessEvent", Handler: execUnary(ExecutiveServer.ProcessEvent)},
		{MethodName: "ProvideFeedback", Handler: execUnary(ExecutiveServer.ProvideFeedback)},
	},
}

func RegisterExecutiveServer(s grpc.ServiceRegistrar, srv ExecutiveServer) {
	s.RegisterService(&ExecutiveServiceDesc, srv)
}

// ExecutiveClient is the hand-written analogue of a protoc-gen-go-grpc
// client stub.
type ExecutiveClient struct {
	cc *grpc.ClientConn
}

func NewExecutiveClient(cc *grpc.ClientConn) *ExecutiveClient { return &ExecutiveClient{cc: cc} }

func (c *ExecutiveClient) ProcessEvent(ctx context.Context, req *ProcessEventRequest) (*ProcessEventResponse, error) {
	out := new(ProcessEventResponse)
	if err := c.cc.Invoke(ctx, "/"+executiveServiceName+"/ProcessEvent", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ExecutiveClient) ProvideFeedback(ctx context.Context, req *ProvideFeedbackRequest) (*ProvideFeedbackResponse, error) {
	out := new(ProvideFeedbackResponse)
	if err := c.cc.Invoke(ctx, "/"+executiveServiceName+"/ProvideFeedback", req, out); err != nil {
		return nil, err
	}
	return out, nil
}
