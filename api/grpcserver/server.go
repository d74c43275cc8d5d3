package grpcserver

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"tickbook/domain/orderbook"
	"tickbook/infra/ticks"
	"tickbook/service"
)

// Book is the service surface the API needs.
type Book interface {
	Apply(ctx context.Context, ev orderbook.Event) (orderbook.Status, error)
	Clear(ctx context.Context) error
	Snapshot() *service.Snapshot
	PriceLevel(ctx context.Context, price int64, side orderbook.Side) (orderbook.Level, bool, error)
	Depth(ctx context.Context, side orderbook.Side, n int) ([]orderbook.Level, error)
}

// Server adapts a BookService to gRPC.
type Server struct {
	book  Book
	ticks ticks.Scale
	log   zerolog.Logger
}

func NewServer(book Book, scale ticks.Scale, log zerolog.Logger) *Server {
	return &Server{book: book, ticks: scale, log: log.With().Str("component", "grpc").Logger()}
}

// NewGRPCServer returns a grpc.Server with the API registered and request
// logging installed.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(LoggingInterceptor(s.log)))
	g := grpc.NewServer(opts...)
	Register(g, s)
	return g
}

// -------------------- Commands --------------------

func (s *Server) Submit(ctx context.Context, req *SubmitRequest) (*Ack, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}
	price := req.Price
	if req.Px != "" {
		if price, err = s.ticks.ParseTick(req.Px); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return s.apply(ctx, orderbook.Event{Kind: orderbook.KindSubmit, ID: req.ID, Price: price, Qty: req.Qty, Side: side})
}

func (s *Server) Amend(ctx context.Context, req *AmendRequest) (*Ack, error) {
	return s.apply(ctx, orderbook.Event{Kind: orderbook.KindAmend, ID: req.ID, Delta: req.Delta})
}

func (s *Server) Cancel(ctx context.Context, req *CancelRequest) (*Ack, error) {
	return s.apply(ctx, orderbook.Event{Kind: orderbook.KindCancel, ID: req.ID})
}

func (s *Server) apply(ctx context.Context, ev orderbook.Event) (*Ack, error) {
	st, err := s.book.Apply(ctx, ev)
	if err != nil {
		return nil, toStatus(err)
	}
	return &Ack{Accepted: st.OK(), Status: st.String()}, nil
}

func (s *Server) Clear(ctx context.Context, _ *ClearRequest) (*ClearResponse, error) {
	if err := s.book.Clear(ctx); err != nil {
		return nil, toStatus(err)
	}
	s.log.Warn().Msg("book cleared over gRPC")
	return &ClearResponse{}, nil
}

// -------------------- Queries --------------------

func (s *Server) TopOfBook(_ context.Context, req *TopOfBookRequest) (*TopOfBookResponse, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}
	snap := s.book.Snapshot()
	top := snap.Top(side)
	resp := &TopOfBookResponse{Price: top.Price, Qty: top.Qty, Orders: top.Orders, Seq: snap.Seq}
	if !top.Empty() {
		resp.Px = s.ticks.Format(top.Price)
	}
	return resp, nil
}

func (s *Server) SnapshotL1(_ context.Context, _ *SnapshotL1Request) (*SnapshotL1Response, error) {
	snap := s.book.Snapshot()
	l1 := snap.L1()
	resp := &SnapshotL1Response{
		BestBid: l1.BestBid,
		BestAsk: l1.BestAsk,
		BidQty:  l1.BidQty,
		AskQty:  l1.AskQty,
		Seq:     snap.Seq,
		Orders:  snap.Orders,
	}
	if l1.BidQty > 0 {
		resp.BestBidPx = s.ticks.Format(l1.BestBid)
	}
	if l1.AskQty > 0 {
		resp.BestAskPx = s.ticks.Format(l1.BestAsk)
	}
	return resp, nil
}

func (s *Server) PriceLevel(ctx context.Context, req *PriceLevelRequest) (*PriceLevelResponse, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}
	lvl, found, err := s.book.PriceLevel(ctx, req.Price, side)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &PriceLevelResponse{Found: found}
	if found {
		resp.Level = s.level(lvl)
	}
	return resp, nil
}

func (s *Server) Depth(ctx context.Context, req *DepthRequest) (*DepthResponse, error) {
	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}
	if req.Levels < 0 {
		return nil, status.Error(codes.InvalidArgument, "levels must not be negative")
	}
	levels, err := s.book.Depth(ctx, side, req.Levels)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &DepthResponse{Levels: make([]Level, len(levels))}
	for i, l := range levels {
		resp.Levels[i] = s.level(l)
	}
	return resp, nil
}

func (s *Server) level(l orderbook.Level) Level {
	return Level{Price: l.Price, Px: s.ticks.Format(l.Price), Qty: l.Qty, Orders: l.Orders}
}

// -------------------- Converters --------------------

func parseSide(v string) (orderbook.Side, error) {
	switch strings.ToLower(v) {
	case "buy", "bid":
		return orderbook.Buy, nil
	case "sell", "ask":
		return orderbook.Sell, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "unknown side %q", v)
	}
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
