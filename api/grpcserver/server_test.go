package grpcserver

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"lob/domain/orderbook"
	"lob/service"
)

func dial(t *testing.T) (*Client, context.CancelFunc) {
	t.Helper()

	svc := service.NewOrderService(orderbook.NewOrderBook(), service.Config{Logger: zerolog.Nop()})
	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(runCtx) }()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(svc, zerolog.Nop())
	gs := grpc.NewServer(grpc.UnaryInterceptor(srv.UnaryLogger()))
	Register(gs, srv)
	go func() { _ = gs.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	var once bool
	shutdown := func() {
		if once {
			return
		}
		once = true
		stop()
		<-done
	}
	t.Cleanup(func() {
		_ = conn.Close()
		gs.Stop()
		shutdown()
	})
	return NewClient(conn), shutdown
}

func TestServerRoundTrip(t *testing.T) {
	c, _ := dial(t)
	ctx := context.Background()

	ask1, err := c.AddLimitOrder(ctx, &AddLimitOrderRequest{Side: "ask", UserID: "alice", Quantity: 10, Price: 100})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ask1.OrderID)
	_, err = c.AddLimitOrder(ctx, &AddLimitOrderRequest{Side: "sell", UserID: "bob", Quantity: 5, Price: 90})
	require.NoError(t, err)
	_, err = c.AddLimitOrder(ctx, &AddLimitOrderRequest{Side: "bid", UserID: "charles", Quantity: 20, Price: 85})
	require.NoError(t, err)

	q, err := c.BestBidOffer(ctx)
	require.NoError(t, err)
	require.NotNil(t, q.Bid)
	require.NotNil(t, q.Ask)
	assert.Equal(t, int64(85), *q.Bid)
	assert.Equal(t, int64(90), *q.Ask)

	res, err := c.PlaceMarketOrder(ctx, &PlaceMarketOrderRequest{Side: "buy", Quantity: 12})
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Filled)
	assert.Equal(t, int64(0), res.Unfilled)
	assert.False(t, res.NoLiquidity)
	assert.Equal(t, "1150", res.Notional)
	assert.Equal(t, "bid", res.Side)
	assert.Contains(t, res.AveragePrice, "95.83")
	require.Len(t, res.Fills, 2)
	assert.Equal(t, FillEntry{OrderID: 2, UserID: "bob", Price: 90, Quantity: 5, Remaining: 0}, res.Fills[0])
	assert.Equal(t, FillEntry{OrderID: 1, UserID: "alice", Price: 100, Quantity: 7, Remaining: 3}, res.Fills[1])

	cancelled, err := c.CancelLimitOrder(ctx, &CancelLimitOrderRequest{OrderID: ask1.OrderID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), cancelled.Order.Quantity)
	assert.Equal(t, int64(10), cancelled.Order.Original)
	assert.Equal(t, "ask", cancelled.Order.Side)

	d, err := c.Depth(ctx, &DepthRequest{})
	require.NoError(t, err)
	assert.Empty(t, d.Asks)
	assert.Equal(t, []LevelEntry{{Price: 85, Quantity: 20, Orders: 1}}, d.Bids)

	q, err = c.BestBidOffer(ctx)
	require.NoError(t, err)
	assert.Nil(t, q.Ask)
}

func TestServerNoLiquidity(t *testing.T) {
	c, _ := dial(t)

	res, err := c.PlaceMarketOrder(context.Background(), &PlaceMarketOrderRequest{Side: "ask", Quantity: 4})
	require.NoError(t, err)
	assert.True(t, res.NoLiquidity)
	assert.Equal(t, int64(4), res.Unfilled)
	assert.Empty(t, res.Fills)
}

func TestServerStatusCodes(t *testing.T) {
	c, shutdown := dial(t)
	ctx := context.Background()

	_, err := c.AddLimitOrder(ctx, &AddLimitOrderRequest{Side: "sideways", Quantity: 1, Price: 1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.AddLimitOrder(ctx, &AddLimitOrderRequest{Side: "bid", Quantity: 0, Price: 1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.PlaceMarketOrder(ctx, &PlaceMarketOrderRequest{Side: "bid", Quantity: -1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Depth(ctx, &DepthRequest{Levels: -1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.CancelLimitOrder(ctx, &CancelLimitOrderRequest{OrderID: 42})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.AddLimitOrder(ctx, &AddLimitOrderRequest{Side: "ask", UserID: "u", Quantity: 2, Price: 10})
	require.NoError(t, err)
	_, err = c.PlaceMarketOrder(ctx, &PlaceMarketOrderRequest{Side: "bid", Quantity: 2})
	require.NoError(t, err)
	_, err = c.CancelLimitOrder(ctx, &CancelLimitOrderRequest{OrderID: 1})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	shutdown()
	_, err = c.BestBidOffer(ctx)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
