package ordersv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Полные имена методов сервиса.
const (
	ServiceName = "orders.v1.OrdersService"

	OrdersService_CreateOrder_FullMethodName       = "/orders.v1.OrdersService/CreateOrder"
	OrdersService_FindAllOrders_FullMethodName     = "/orders.v1.OrdersService/FindAllOrders"
	OrdersService_FindOneOrder_FullMethodName      = "/orders.v1.OrdersService/FindOneOrder"
	OrdersService_ChangeOrderStatus_FullMethodName = "/orders.v1.OrdersService/ChangeOrderStatus"
)

// OrdersServiceServer — серверная часть сервиса заказов.
type OrdersServiceServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*Order, error)
	FindAllOrders(context.Context, *FindAllOrdersRequest) (*OrderPage, error)
	FindOneOrder(context.Context, *FindOneOrderRequest) (*Order, error)
	ChangeOrderStatus(context.Context, *ChangeOrderStatusRequest) (*Order, error)
}

// UnimplementedOrdersServiceServer возвращает Unimplemented для всех методов.
type UnimplementedOrdersServiceServer struct{}

func (UnimplementedOrdersServiceServer) CreateOrder(context.Context, *CreateOrderRequest) (*Order, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateOrder not implemented")
}

func (UnimplementedOrdersServiceServer) FindAllOrders(context.Context, *FindAllOrdersRequest) (*OrderPage, error) {
	return nil, status.Error(codes.Unimplemented, "method FindAllOrders not implemented")
}

func (UnimplementedOrdersServiceServer) FindOneOrder(context.Context, *FindOneOrderRequest) (*Order, error) {
	return nil, status.Error(codes.Unimplemented, "method FindOneOrder not implemented")
}

func (UnimplementedOrdersServiceServer) ChangeOrderStatus(context.Context, *ChangeOrderStatusRequest) (*Order, error) {
	return nil, status.Error(codes.Unimplemented, "method ChangeOrderStatus not implemented")
}

// RegisterOrdersServiceServer регистрирует реализацию в gRPC-сервере.
func RegisterOrdersServiceServer(s grpc.ServiceRegistrar, srv OrdersServiceServer) {
	s.RegisterService(&OrdersService_ServiceDesc, srv)
}

func _OrdersService_CreateOrder_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServiceServer).CreateOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OrdersService_CreateOrder_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServiceServer).CreateOrder(ctx, req.(*CreateOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrdersService_FindAllOrders_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FindAllOrdersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServiceServer).FindAllOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OrdersService_FindAllOrders_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServiceServer).FindAllOrders(ctx, req.(*FindAllOrdersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrdersService_FindOneOrder_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FindOneOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServiceServer).FindOneOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OrdersService_FindOneOrder_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServiceServer).FindOneOrder(ctx, req.(*FindOneOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrdersService_ChangeOrderStatus_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ChangeOrderStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrdersServiceServer).ChangeOrderStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OrdersService_ChangeOrderStatus_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrdersServiceServer).ChangeOrderStatus(ctx, req.(*ChangeOrderStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// OrdersService_ServiceDesc — описание сервиса для grpc.Server.
var OrdersService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrdersServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrder", Handler: _OrdersService_CreateOrder_Handler},
		{MethodName: "FindAllOrders", Handler: _OrdersService_FindAllOrders_Handler},
		{MethodName: "FindOneOrder", Handler: _OrdersService_FindOneOrder_Handler},
		{MethodName: "ChangeOrderStatus", Handler: _OrdersService_ChangeOrderStatus_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orders/v1/orders.json",
}

// OrdersServiceClient — клиент сервиса заказов.
type OrdersServiceClient interface {
	CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*Order, error)
	FindAllOrders(ctx context.Context, in *FindAllOrdersRequest, opts ...grpc.CallOption) (*OrderPage, error)
	FindOneOrder(ctx context.Context, in *FindOneOrderRequest, opts ...grpc.CallOption) (*Order, error)
	ChangeOrderStatus(ctx context.Context, in *ChangeOrderStatusRequest, opts ...grpc.CallOption) (*Order, error)
}

type ordersServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewOrdersServiceClient создаёт клиента; JSON-кодек подставляется в каждый вызов.
func NewOrdersServiceClient(cc grpc.ClientConnInterface) OrdersServiceClient {
	return &ordersServiceClient{cc: cc}
}

func (c *ordersServiceClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*Order, error) {
	out := new(Order)
	if err := c.cc.Invoke(ctx, OrdersService_CreateOrder_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ordersServiceClient) FindAllOrders(ctx context.Context, in *FindAllOrdersRequest, opts ...grpc.CallOption) (*OrderPage, error) {
	out := new(OrderPage)
	if err := c.cc.Invoke(ctx, OrdersService_FindAllOrders_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ordersServiceClient) FindOneOrder(ctx context.Context, in *FindOneOrderRequest, opts ...grpc.CallOption) (*Order, error) {
	out := new(Order)
	if err := c.cc.Invoke(ctx, OrdersService_FindOneOrder_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ordersServiceClient) ChangeOrderStatus(ctx context.Context, in *ChangeOrderStatusRequest, opts ...grpc.CallOption) (*Order, error) {
	out := new(Order)
	if err := c.cc.Invoke(ctx, OrdersService_ChangeOrderStatus_FullMethodName, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{CallOption()}, opts...)
}
