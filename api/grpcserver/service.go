package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "lob.v1.OrderBook"

// OrderBookServer is the server API for the lob.v1.OrderBook service.
type OrderBookServer interface {
	AddLimitOrder(context.Context, *AddLimitOrderRequest) (*AddLimitOrderResponse, error)
	CancelLimitOrder(context.Context, *CancelLimitOrderRequest) (*CancelLimitOrderResponse, error)
	PlaceMarketOrder(context.Context, *PlaceMarketOrderRequest) (*PlaceMarketOrderResponse, error)
	BestBidOffer(context.Context, *BestBidOfferRequest) (*BestBidOfferResponse, error)
	Depth(context.Context, *DepthRequest) (*DepthResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderBookServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AddLimitOrder", OrderBookServer.AddLimitOrder),
		unary("CancelLimitOrder", OrderBookServer.CancelLimitOrder),
		unary("PlaceMarketOrder", OrderBookServer.PlaceMarketOrder),
		unary("BestBidOffer", OrderBookServer.BestBidOffer),
		unary("Depth", OrderBookServer.Depth),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lob/v1/orderbook",
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv OrderBookServer) {
	s.RegisterService(&serviceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](
	method string,
	call func(OrderBookServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
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
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(OrderBookServer), ctx, req.(*Req))
			})
		},
	}
}
