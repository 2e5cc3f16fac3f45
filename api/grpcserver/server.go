package grpcserver

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"lob/domain/orderbook"
	"lob/service"
)

// Engine is the sequenced book the server fronts. *service.OrderService
// implements it.
type Engine interface {
	AddLimitOrder(ctx context.Context, side orderbook.Side, userID string, qty, price int64) (uint64, error)
	CancelLimitOrder(ctx context.Context, id uint64) (*orderbook.Order, error)
	PlaceMarketOrder(ctx context.Context, side orderbook.Side, qty int64) (orderbook.MarketResult, error)
	BestBidOffer(ctx context.Context) (orderbook.BBO, error)
	Depth(ctx context.Context, levels int) (orderbook.DepthSnapshot, error)
}

// Server adapts an Engine to gRPC.
type Server struct {
	eng Engine
	log zerolog.Logger
}

func NewServer(eng Engine, log zerolog.Logger) *Server {
	return &Server{eng: eng, log: log.With().Str("component", "grpc").Logger()}
}

// -------------------- Commands --------------------

func (s *Server) AddLimitOrder(ctx context.Context, req *AddLimitOrderRequest) (*AddLimitOrderResponse, error) {
	side, err := orderbook.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	id, err := s.eng.AddLimitOrder(ctx, side, req.UserID, req.Quantity, req.Price)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AddLimitOrderResponse{OrderID: id}, nil
}

func (s *Server) CancelLimitOrder(ctx context.Context, req *CancelLimitOrderRequest) (*CancelLimitOrderResponse, error) {
	o, err := s.eng.CancelLimitOrder(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CancelLimitOrderResponse{Order: fromOrder(o)}, nil
}

func (s *Server) PlaceMarketOrder(ctx context.Context, req *PlaceMarketOrderRequest) (*PlaceMarketOrderResponse, error) {
	side, err := orderbook.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.eng.PlaceMarketOrder(ctx, side, req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return fromMarketResult(res), nil
}

// -------------------- Queries --------------------

func (s *Server) BestBidOffer(ctx context.Context, _ *BestBidOfferRequest) (*BestBidOfferResponse, error) {
	q, err := s.eng.BestBidOffer(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return fromBBO(q), nil
}

func (s *Server) Depth(ctx context.Context, req *DepthRequest) (*DepthResponse, error) {
	if req.Levels < 0 {
		return nil, status.Error(codes.InvalidArgument, "levels must not be negative")
	}
	d, err := s.eng.Depth(ctx, req.Levels)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DepthResponse{Bids: fromLevels(d.Bids), Asks: fromLevels(d.Asks)}, nil
}

// -------------------- Plumbing --------------------

// UnaryLogger logs each call with its status code and latency.
func (s *Server) UnaryLogger() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		ev := s.log.Debug()
		if code == codes.Internal || code == codes.Unavailable {
			ev = s.log.Warn()
		}
		ev.Str("method", info.FullMethod).
			Str("code", code.String()).
			Dur("took", time.Since(start)).
			Err(err).
			Msg("rpc")
		return resp, err
	}
}

func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, orderbook.ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, orderbook.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, orderbook.ErrAlreadyFulfilled):
		code = codes.FailedPrecondition
	case errors.Is(err, service.ErrStopped):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}
