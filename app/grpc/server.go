package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vibast-solutions/ms-go-plans/app/mapper"
	"github.com/vibast-solutions/ms-go-plans/app/service"
	"github.com/vibast-solutions/ms-go-plans/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName           = "plans.PlansService"
	getPlansMethod        = "/plans.PlansService/GetPlans"
	invalidatePlansMethod = "/plans.PlansService/InvalidatePlans"
	sourceMetadataKey     = "x-plans-source"
)

// PlansServiceServer is the gRPC surface of the plans service. Messages are
// protobuf well-known types so no generated code is needed on either side.
type PlansServiceServer interface {
	GetPlans(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.ListValue, error)
	InvalidatePlans(ctx context.Context, req *wrapperspb.StringValue) (*timestamppb.Timestamp, error)
}

type Server struct {
	plansService   *service.PlansService
	webhookService *service.WebhookService
}

func NewServer(plansService *service.PlansService, webhookService *service.WebhookService) *Server {
	return &Server{plansService: plansService, webhookService: webhookService}
}

func RegisterPlansServiceServer(registrar grpc.ServiceRegistrar, srv PlansServiceServer) {
	registrar.RegisterService(&plansServiceDesc, srv)
}

// GetPlans returns the plan list as a ListValue of JSON-shaped structs,
// matching the HTTP body of GET /plans.
func (s *Server) GetPlans(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.ListValue, error) {
	l := loggerWithContext(ctx)

	result := s.plansService.GetPlansResult(ctx, req.GetValue())
	_ = grpc.SetHeader(ctx, metadata.Pairs(sourceMetadataKey, string(result.Source)))

	body, err := json.Marshal(mapper.PlansToResponse(result.Plans))
	if err != nil {
		l.WithError(err).Error("Encode plans failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	list := &structpb.ListValue{}
	if err := protojson.Unmarshal(body, list); err != nil {
		l.WithError(err).Error("Convert plans failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return list, nil
}

// InvalidatePlans is the gRPC form of the plans webhook. The signature is
// taken from the request, or from x-webhook-signature metadata when empty.
func (s *Server) InvalidatePlans(ctx context.Context, req *wrapperspb.StringValue) (*timestamppb.Timestamp, error) {
	signature := req.GetValue()
	if signature == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(types.WebhookSignatureHeader); len(values) > 0 {
				signature = values[0]
			}
		}
	}

	result, err := s.webhookService.Handle(ctx, signature, service.WebhookEvent{Event: "grpc"})
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "Unauthorized")
		}
		loggerWithContext(ctx).WithError(err).Error("Invalidate plans failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return timestamppb.New(result.Timestamp), nil
}

var plansServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PlansServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPlans", Handler: getPlansHandler},
		{MethodName: "InvalidatePlans", Handler: invalidatePlansHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "plans.proto",
}

func getPlansHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BoolValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlansServiceServer).GetPlans(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getPlansMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PlansServiceServer).GetPlans(ctx, req.(*wrapperspb.BoolValue))
	}
	return interceptor(ctx, in, info, handler)
}

func invalidatePlansHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlansServiceServer).InvalidatePlans(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: invalidatePlansMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PlansServiceServer).InvalidatePlans(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// PlansServiceClient calls PlansService over an existing connection.
type PlansServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPlansServiceClient(cc grpc.ClientConnInterface) *PlansServiceClient {
	return &PlansServiceClient{cc: cc}
}

func (c *PlansServiceClient) GetPlans(ctx context.Context, refresh bool, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, getPlansMethod, wrapperspb.Bool(refresh), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PlansServiceClient) InvalidatePlans(ctx context.Context, signature string, opts ...grpc.CallOption) (*timestamppb.Timestamp, error) {
	out := new(timestamppb.Timestamp)
	if err := c.cc.Invoke(ctx, invalidatePlansMethod, wrapperspb.String(signature), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
