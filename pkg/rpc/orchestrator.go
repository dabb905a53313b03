package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const orchestratorServiceName = "gladys.orchestrator.Orchestrator"

// OrchestratorServer is the server-side contract for spec §6's
// Orchestrator RPC surface.
type OrchestratorServer interface {
	PublishEvents(stream Orchestrator_PublishEventsServer) error
	SubscribeEvents(req *SubscribeEventsRequest, stream Orchestrator_SubscribeEventsServer) error
	SubscribeResponses(req *SubscribeResponsesRequest, stream Orchestrator_SubscribeResponsesServer) error
	GetQueueStats(ctx context.Context, req *Empty) (*QueueStats, error)
	ListQueuedEvents(ctx context.Context, req *ListQueuedEventsRequest) (*ListQueuedEventsResponse, error)
	GetHealth(ctx context.Context, req *Empty) (*HealthStatus, error)
	GetHealthDetails(ctx context.Context, req *Empty) (*HealthStatus, error)
}

type Empty struct{}

type ListQueuedEventsResponse struct {
	Events []QueuedEventInfo `json:"events"`
}

// Orchestrator_PublishEventsServer is the bidirectional-streaming server
// side of PublishEvents(stream Event) -> stream EventAck.
type Orchestrator_PublishEventsServer interface {
	Send(*EventAck) error
	Recv() (*PublishedEvent, error)
	grpc.ServerStream
}

// PublishedEvent is the client-to-server message of PublishEvents.
type PublishedEvent struct {
	Event EventWire `json:"event"`
}

// EventWire mirrors models.Event on the wire (kept separate so pkg/rpc
// has no import-cycle dependency surprises if models grows RPC-only
// fields later).
type EventWire struct {
	ID        string             `json:"id"`
	Source    string             `json:"source"`
	RawText   string             `json:"raw_text"`
	TimestampMS int64            `json:"timestamp_ms"`
	Salience  *SalienceWire      `json:"salience,omitempty"`
}

type SalienceWire struct {
	Threat      float64            `json:"threat"`
	Salience    float64            `json:"salience"`
	Habituation float64            `json:"habituation"`
	Vector      map[string]float64 `json:"vector,omitempty"`
	ModelID     string             `json:"model_id,omitempty"`
}

type orchestratorPublishEventsServer struct {
	grpc.ServerStream
}

func (s *orchestratorPublishEventsServer) Send(m *EventAck) error { return s.ServerStream.SendMsg(m) }
func (s *orchestratorPublishEventsServer) Recv() (*PublishedEvent, error) {
	m := new(PublishedEvent)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Orchestrator_SubscribeEventsServer is the server-streaming side of
// SubscribeEvents.
type Orchestrator_SubscribeEventsServer interface {
	Send(*PublishedEvent) error
	grpc.ServerStream
}

type orchestratorSubscribeEventsServer struct{ grpc.ServerStream }

func (s *orchestratorSubscribeEventsServer) Send(m *PublishedEvent) error {
	return s.ServerStream.SendMsg(m)
}

// Orchestrator_SubscribeResponsesServer is the server-streaming side of
// SubscribeResponses.
type Orchestrator_SubscribeResponsesServer interface {
	Send(*Response) error
	grpc.ServerStream
}

type orchestratorSubscribeResponsesServer struct{ grpc.ServerStream }

func (s *orchestratorSubscribeResponsesServer) Send(m *Response) error {
	return s.ServerStream.SendMsg(m)
}

func orchestratorPublishEventsHandler(srv any, stream grpc.ServerStream) error {
	return srv.(OrchestratorServer).PublishEvents(&orchestratorPublishEventsServer{stream})
}

func orchestratorSubscribeEventsHandler(srv any, stream grpc.ServerStream) error {
	m := new(SubscribeEventsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(OrchestratorServer).SubscribeEvents(m, &orchestratorSubscribeEventsServer{stream})
}

func orchestratorSubscribeResponsesHandler(srv any, stream grpc.ServerStream) error {
	m := new(SubscribeResponsesRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(OrchestratorServer).SubscribeResponses(m, &orchestratorSubscribeResponsesServer{stream})
}

func orchestratorGetQueueStatsHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(OrchestratorServer).GetQueueStats(ctx, req)
}

func orchestratorListQueuedEventsHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(ListQueuedEventsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(OrchestratorServer).ListQueuedEvents(ctx, req)
}

func orchestratorGetHealthHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(OrchestratorServer).GetHealth(ctx, req)
}

func orchestratorGetHealthDetailsHandler(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(OrchestratorServer).GetHealthDetails(ctx, req)
}

// OrchestratorServiceDesc is the hand-written analogue of what
// protoc-gen-go-grpc would emit for the Orchestrator service.
var OrchestratorServiceDesc = grpc.ServiceDesc{
	ServiceName: orchestratorServiceName,
	HandlerType: (*OrchestratorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetQueueStats", Handler: orchestratorGetQueueStatsHandler},
		{MethodName: "ListQueuedEvents", Handler: orchestratorListQueuedEventsHandler},
		{MethodName: "GetHealth", Handler: orchestratorGetHealthHandler},
		{MethodName: "GetHealthDetails", Handler: orchestratorGetHealthDetailsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "PublishEvents", Handler: orchestratorPublishEventsHandler, ServerStreams: true, ClientStreams: true},
		{StreamName: "SubscribeEvents", Handler: orchestratorSubscribeEventsHandler, ServerStreams: true},
		{StreamName: "SubscribeResponses", Handler: orchestratorSubscribeResponsesHandler, ServerStreams: true},
	},
}

func RegisterOrchestratorServer(s grpc.ServiceRegistrar, srv OrchestratorServer) {
	s.RegisterService(&OrchestratorServiceDesc, srv)
}

// OrchestratorClient is the hand-written analogue of a protoc-gen-go-grpc
// client stub.
type OrchestratorClient struct {
	cc *grpc.ClientConn
}

func NewOrchestratorClient(cc *grpc.ClientConn) *OrchestratorClient {
	return &OrchestratorClient{cc: cc}
}

func (c *OrchestratorClient) PublishEvents(ctx context.Context) (Orchestrator_PublishEventsClient, error) {
	stream, err := c.cc.NewStream(ctx, &OrchestratorServiceDesc.Streams[0], "/"+orchestratorServiceName+"/PublishEvents")
	if err != nil {
		return nil, err
	}
	return &orchestratorPublishEventsClient{stream}, nil
}

type Orchestrator_PublishEventsClient interface {
	Send(*PublishedEvent) error
	Recv() (*EventAck, error)
	grpc.ClientStream
}

type orchestratorPublishEventsClient struct{ grpc.ClientStream }

func (c *orchestratorPublishEventsClient) Send(m *PublishedEvent) error { return c.ClientStream.SendMsg(m) }
func (c *orchestratorPublishEventsClient) Recv() (*EventAck, error) {
	m := new(EventAck)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *OrchestratorClient) SubscribeEvents(ctx context.Context, req *SubscribeEventsRequest) (Orchestrator_SubscribeEventsClient, error) {
	stream, err := c.cc.NewStream(ctx, &OrchestratorServiceDesc.Streams[1], "/"+orchestratorServiceName+"/SubscribeEvents")
	if err != nil {
		return nil, err
	}
	cs := &orchestratorSubscribeEventsClient{stream}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return cs, nil
}

type Orchestrator_SubscribeEventsClient interface {
	Recv() (*PublishedEvent, error)
	grpc.ClientStream
}

type orchestratorSubscribeEventsClient struct{ grpc.ClientStream }

func (c *orchestratorSubscribeEventsClient) Recv() (*PublishedEvent, error) {
	m := new(PublishedEvent)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *OrchestratorClient) SubscribeResponses(ctx context.Context, req *SubscribeResponsesRequest) (Orchestrator_SubscribeResponsesClient, error) {
	stream, err := c.cc.NewStream(ctx, &OrchestratorServiceDesc.Streams[2], "/"+orchestratorServiceName+"/SubscribeResponses")
	if err != nil {
		return nil, err
	}
	cs := &orchestratorSubscribeResponsesClient{stream}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return cs, nil
}

type Orchestrator_SubscribeResponsesClient interface {
	Recv() (*Response, error)
	grpc.ClientStream
}

type orchestratorSubscribeResponsesClient struct{ grpc.ClientStream }

func (c *orchestratorSubscribeResponsesClient) Recv() (*Response, error) {
	m := new(Response)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *OrchestratorClient) GetQueueStats(ctx context.Context, req *Empty, opts ...grpc.CallOption) (*QueueStats, error) {
	out := new(QueueStats)
	if err := c.cc.Invoke(ctx, "/"+orchestratorServiceName+"/GetQueueStats", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrchestratorClient) ListQueuedEvents(ctx context.Context, req *ListQueuedEventsRequest, opts ...grpc.CallOption) (*ListQueuedEventsResponse, error) {
	out := new(ListQueuedEventsResponse)
	if err := c.cc.Invoke(ctx, "/"+orchestratorServiceName+"/ListQueuedEvents", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrchestratorClient) GetHealth(ctx context.Context, req *Empty, opts ...grpc.CallOption) (*HealthStatus, error) {
	out := new(HealthStatus)
	if err := c.cc.Invoke(ctx, "/"+orchestratorServiceName+"/GetHealth", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrchestratorClient) GetHealthDetails(ctx context.Context, req *Empty, opts ...grpc.CallOption) (*HealthStatus, error) {
	out := new(HealthStatus)
	if err := c.cc.Invoke(ctx, "/"+orchestratorServiceName+"/GetHealthDetails", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
