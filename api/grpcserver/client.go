package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls lob.v1.OrderBook over an existing connection. Every call
// requests the lobwire content-subtype.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) AddLimitOrder(ctx context.Context, in *AddLimitOrderRequest, opts ...grpc.CallOption) (*AddLimitOrderResponse, error) {
	out := new(AddLimitOrderResponse)
	if err := c.invoke(ctx, "AddLimitOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CancelLimitOrder(ctx context.Context, in *CancelLimitOrderRequest, opts ...grpc.CallOption) (*CancelLimitOrderResponse, error) {
	out := new(CancelLimitOrderResponse)
	if err := c.invoke(ctx, "CancelLimitOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PlaceMarketOrder(ctx context.Context, in *PlaceMarketOrderRequest, opts ...grpc.CallOption) (*PlaceMarketOrderResponse, error) {
	out := new(PlaceMarketOrderResponse)
	if err := c.invoke(ctx, "PlaceMarketOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BestBidOffer(ctx context.Context, opts ...grpc.CallOption) (*BestBidOfferResponse, error) {
	out := new(BestBidOfferResponse)
	if err := c.invoke(ctx, "BestBidOffer", &BestBidOfferRequest{}, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Depth(ctx context.Context, in *DepthRequest, opts ...grpc.CallOption) (*DepthResponse, error) {
	out := new(DepthResponse)
	if err := c.invoke(ctx, "Depth", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.conn.Invoke(ctx, fullMethod(method), in, out, opts...)
}
