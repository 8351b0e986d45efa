package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"storefront-svc/apperr"
	"storefront-svc/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "storefront.OrderQuery"

// OrderReader is the read side of the order store.
type OrderReader interface {
	GetByID(ctx context.Context, orderID, userID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
}

// OrderQueryServer exposes settled orders to internal callers. Requests and
// responses are generic structs so no generated stubs are needed.
type OrderQueryServer interface {
	GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListUserOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var OrderQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrderQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: unaryHandler("GetOrder", OrderQueryServer.GetOrder)},
		{MethodName: "ListUserOrders", Handler: unaryHandler("ListUserOrders", OrderQueryServer.ListUserOrders)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/order_query",
}

func RegisterOrderQueryServer(s grpc.ServiceRegistrar, srv OrderQueryServer) {
	s.RegisterService(&OrderQueryServiceDesc, srv)
}

type unaryMethod func(OrderQueryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, method unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(OrderQueryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(OrderQueryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type OrderQueryService struct {
	orders OrderReader
	logger *zap.Logger
}

func NewOrderQueryService(orders OrderReader, logger *zap.Logger) *OrderQueryService {
	return &OrderQueryService{orders: orders, logger: logger}
}

func (s *OrderQueryService) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "GetOrder_gRPC")
	defer span.End()

	orderID := stringField(req, "order_id")
	userID := stringField(req, "user_id")
	if orderID == "" || userID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id and user_id are required")
	}
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("user.id", userID))

	order, err := s.orders.GetByID(ctx, orderID, userID)
	if err != nil {
		span.RecordError(err)
		return nil, s.toStatus(err)
	}

	out, err := toStruct(order)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	return out, nil
}

func (s *OrderQueryService) ListUserOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "ListUserOrders_gRPC")
	defer span.End()

	userID := stringField(req, "user_id")
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	span.SetAttributes(attribute.String("user.id", userID))

	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, s.toStatus(err)
	}

	out, err := toStruct(map[string]any{"orders": orders})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode orders")
	}
	return out, nil
}

func (s *OrderQueryService) toStatus(err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, apperr.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Error("Order query failed", zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

// toStruct goes through JSON so the wire shape matches the HTTP API.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// OrderQueryClient calls OrderQueryServer over a client connection.
type OrderQueryClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderQueryClient(cc grpc.ClientConnInterface) *OrderQueryClient {
	return &OrderQueryClient{cc: cc}
}

func (c *OrderQueryClient) GetOrder(ctx context.Context, orderID, userID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"order_id": orderID, "user_id": userID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/GetOrder", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *OrderQueryClient) ListUserOrders(ctx context.Context, userID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ListUserOrders", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
