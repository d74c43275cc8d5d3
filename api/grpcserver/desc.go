package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "tickbook.v1.OrderBook"

// OrderBookServer is the server API of tickbook.v1.OrderBook.
type OrderBookServer interface {
	Submit(context.Context, *SubmitRequest) (*Ack, error)
	Amend(context.Context, *AmendRequest) (*Ack, error)
	Cancel(context.Context, *CancelRequest) (*Ack, error)
	Clear(context.Context, *ClearRequest) (*ClearResponse, error)
	TopOfBook(context.Context, *TopOfBookRequest) (*TopOfBookResponse, error)
	SnapshotL1(context.Context, *SnapshotL1Request) (*SnapshotL1Response, error)
	PriceLevel(context.Context, *PriceLevelRequest) (*PriceLevelResponse, error)
	Depth(context.Context, *DepthRequest) (*DepthResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderBookServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Submit", OrderBookServer.Submit),
		unary("Amend", OrderBookServer.Amend),
		unary("Cancel", OrderBookServer.Cancel),
		unary("Clear", OrderBookServer.Clear),
		unary("TopOfBook", OrderBookServer.TopOfBook),
		unary("SnapshotL1", OrderBookServer.SnapshotL1),
		unary("PriceLevel", OrderBookServer.PriceLevel),
		unary("Depth", OrderBookServer.Depth),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tickbook/v1/orderbook",
}

func Register(r grpc.ServiceRegistrar, srv OrderBookServer) {
	r.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(OrderBookServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OrderBookServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(OrderBookServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
