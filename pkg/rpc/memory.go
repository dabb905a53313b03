package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const memoryServiceName = "gladys.memory.Memory"

// MemoryServer is the server-side contract for spec §6's Memory RPC
// surface. Every method is unary; Memory has no streaming obligations.
type MemoryServer interface {
	StoreEvent(ctx context.Context, req *StoreEventRequest) (*StoreEventResponse, error)
	QueryByTime(ctx context.Context, req *QueryByTimeRequest) (*QueryByTimeResponse, error)
	QueryBySimilarity(ctx context.Context, req *QueryBySimilarityRequest) (*QueryBySimilarityResponse, error)
	GenerateEmbedding(ctx context.Context, req *GenerateEmbeddingRequest) (*GenerateEmbeddingResponse, error)
	StoreHeuristic(ctx context.Context, req *StoreHeuristicRequest) (*StoreHeuristicResponse, error)
	QueryHeuristics(ctx context.Context, req *QueryHeuristicsRequest) (*HeuristicMatchesResponse, error)
	QueryMatchingHeuristics(ctx context.Context, req *QueryMatchingHeuristicsRequest) (*HeuristicMatchesResponse, error)
	GetHeuristic(ctx context.Context, req *GetHeuristicRequest) (*GetHeuristicResponse, error)
	UpdateHeuristicConfidence(ctx context.Context, req *UpdateHeuristicConfidenceRequest) (*UpdateHeuristicConfidenceResponse, error)
	RecordHeuristicFire(ctx context.Context, req *RecordHeuristicFireRequest) (*RecordHeuristicFireResponse, error)
	UpdateFireOutcome(ctx context.Context, req *UpdateFireOutcomeRequest) (*UpdateFireOutcomeResponse, error)
	GetPendingFires(ctx context.Context, req *GetPendingFiresRequest) (*GetPendingFiresResponse, error)
	ListEntities(ctx context.Context, req *ListEntitiesRequest) (*ListEntitiesResponse, error)
	GetRelationships(ctx context.Context, req *GetRelationshipsRequest) (*GetRelationshipsResponse, error)
}

func memUnary[Req, Resp any](call func(MemoryServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MemoryServer), ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: memoryServiceName}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MemoryServer), ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// MemoryServiceDesc is the hand-written analogue of what
// protoc-gen-go-grpc would emit for the Memory service.
var MemoryServiceDesc = grpc.ServiceDesc{
	ServiceName: memoryServiceName,
	HandlerType: (*MemoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StoreEvent", Handler: memUnary(MemoryServer.StoreEvent)},
		{MethodName: "QueryByTime", Handler: memUnary(MemoryServer.QueryByTime)},
		{MethodName: "QueryBySimilarity", Handler: memUnary(MemoryServer.QueryBySimilarity)},
		{MethodName: "GenerateEmbedding", Handler: memUnary(MemoryServer.GenerateEmbedding)},
		{MethodName: "StoreHeuristic", Handler: memUnary(MemoryServer.StoreHeuristic)},
		{MethodName: "QueryHeuristics", Handler: memUnary(MemoryServer.QueryHeuristics)},
		{MethodName: "QueryMatchingHeuristics", Handler: memUnary(MemoryServer.QueryMatchingHeuristics)},
		{MethodName: "GetHeuristic", Handler: memUnary(MemoryServer.GetHeuristic)},
		{MethodName: "UpdateHeuristicConfidence", Handler: memUnary(MemoryServer.UpdateHeuristicConfidence)},
		{MethodName: "RecordHeuristicFire", Handler: memUnary(MemoryServer.RecordHeuristicFire)},
		{MethodName: "UpdateFireOutcome", Handler: memUnary(MemoryServer.UpdateFireOutcome)},
		{MethodName: "GetPendingFires", Handler: memUnary(MemoryServer.GetPendingFires)},
		{MethodName: "ListEntities", Handler: memUnary(MemoryServer.ListEntities)},
		{MethodName: "GetRelationships", Handler: memUnary(MemoryServer.GetRelationships)},
	},
}

func RegisterMemoryServer(s grpc.ServiceRegistrar, srv MemoryServer) {
	s.RegisterService(&MemoryServiceDesc, srv)
}

// MemoryClient is the hand-written analogue of a protoc-gen-go-grpc
// client stub.
type MemoryClient struct {
	cc *grpc.ClientConn
}

func NewMemoryClient(cc *grpc.ClientConn) *MemoryClient { return &MemoryClient{cc: cc} }

func (c *MemoryClient) invoke(ctx context.Context, method string, req, out any) error {
	return c.cc.Invoke(ctx, "/"+memoryServiceName+"/"+method, req, out)
}

func (c *MemoryClient) StoreEvent(ctx context.Context, req *StoreEventRequest) (*StoreEventResponse, error) {
	out := new(StoreEventResponse)
	return out, c.invoke(ctx, "StoreEvent", req, out)
}

func (c *MemoryClient) QueryByTime(ctx context.Context, req *QueryByTimeRequest) (*QueryByTimeResponse, error) {
	out := new(QueryByTimeResponse)
	return out, c.invoke(ctx, "QueryByTime", req, out)
}

func (c *MemoryClient) QueryBySimilarity(ctx context.Context, req *QueryBySimilarityRequest) (*QueryBySimilarityResponse, error) {
	out := new(QueryBySimilarityResponse)
	return out, c.invoke(ctx, "QueryBySimilarity", req, out)
}

func (c *MemoryClient) GenerateEmbedding(ctx context.Context, req *GenerateEmbeddingRequest) (*GenerateEmbeddingResponse, error) {
	out := new(GenerateEmbeddingResponse)
	return out, c.invoke(ctx, "GenerateEmbedding", req, out)
}

func (c *MemoryClient) StoreHeuristic(ctx context.Context, req *StoreHeuristicRequest) (*StoreHeuristicResponse, error) {
	out := new(StoreHeuristicResponse)
	return out, c.invoke(ctx, "StoreHeuristic", req, out)
}

func (c *MemoryClient) QueryHeuristics(ctx context.Context, req *QueryHeuristicsRequest) (*HeuristicMatchesResponse, error) {
	out := new(HeuristicMatchesResponse)
	return out, c.invoke(ctx, "QueryHeuristics", req, out)
}

func (c *MemoryClient) QueryMatchingHeuristics(ctx context.Context, req *QueryMatchingHeuristicsRequest) (*HeuristicMatchesResponse, error) {
	out := new(HeuristicMatchesResponse)
	return out, c.invoke(ctx, "QueryMatchingHeuristics", req, out)
}

func (c *MemoryClient) GetHeuristic(ctx context.Context, req *GetHeuristicRequest) (*GetHeuristicResponse, error) {
	out := new(GetHeuristicResponse)
	return out, c.invoke(ctx, "GetHeuristic", req, out)
}

func (c *MemoryClient) UpdateHeuristicConfidence(ctx context.Context, req *UpdateHeuristicConfidenceRequest) (*UpdateHeuristicConfidenceResponse, error) {
	out := new(UpdateHeuristicConfidenceResponse)
	return out, c.invoke(ctx, "UpdateHeuristicConfidence", req, out)
}

func (c *MemoryClient) RecordHeuristicFire(ctx context.Context, req *RecordHeuristicFireRequest) (*RecordHeuristicFireResponse, error) {
	out := new(RecordHeuristicFireResponse)
	return out, c.invoke(ctx, "RecordHeuristicFire", req, out)
}

func (c *MemoryClient) UpdateFireOutcome(ctx context.Context, req *UpdateFireOutcomeRequest) (*UpdateFireOutcomeResponse, error) {
	out := new(UpdateFireOutcomeResponse)
	return out, c.invoke(ctx, "UpdateFireOutcome", req, out)
}

func (c *MemoryClient) GetPendingFires(ctx context.Context, req *GetPendingFiresRequest) (*GetPendingFiresResponse, error) {
	out := new(GetPendingFiresResponse)
	return out, c.invoke(ctx, "GetPendingFires", req, out)
}

func (c *MemoryClient) ListEntities(ctx context.Context, req *ListEntitiesRequest) (*ListEntitiesResponse, error) {
	out := new(ListEntitiesResponse)
	return out, c.invoke(ctx, "ListEntities", req, out)
}

func (c *MemoryClient) GetRelationships(ctx context.Context, req *GetRelationshipsRequest) (*GetRelationshipsResponse, error) {
	out := new(GetRelationshipsResponse)
	return out, c.invoke(ctx, "GetRelationships", req, out)
}
