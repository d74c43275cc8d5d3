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
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"tickbook/domain/orderbook"
	"tickbook/infra/ticks"
	"tickbook/service"
)

func setup(t *testing.T) (*Client, *service.BookService) {
	t.Helper()
	svc, err := service.New(service.Config{Logger: zerolog.Nop()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(NewServer(svc, ticks.MustParse("0.01"), zerolog.Nop()))
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		cancel()
		require.NoError(t, <-errc)
	})
	return NewClient(conn), svc
}

func TestSubmitAndQuery(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	ack, err := c.Submit(ctx, &SubmitRequest{ID: 1, Price: 10000, Qty: 10, Side: "buy"})
	require.NoError(t, err)
	assert.True(t, ack.Accepted)
	assert.Equal(t, "accepted", ack.Status)

	ack, err = c.Submit(ctx, &SubmitRequest{ID: 2, Px: "100.05", Qty: 4, Side: "ask"})
	require.NoError(t, err)
	assert.True(t, ack.Accepted)

	ack, err = c.Submit(ctx, &SubmitRequest{ID: 1, Price: 10000, Qty: 1, Side: "buy"})
	require.NoError(t, err)
	assert.False(t, ack.Accepted)
	assert.Equal(t, "duplicate_order", ack.Status)

	top, err := c.TopOfBook(ctx, &TopOfBookRequest{Side: "bid"})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), top.Price)
	assert.Equal(t, "100.00", top.Px)
	assert.Equal(t, uint64(10), top.Qty)
	assert.Equal(t, uint32(1), top.Orders)

	l1, err := c.SnapshotL1(ctx, &SnapshotL1Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), l1.BestBid)
	assert.Equal(t, int64(10005), l1.BestAsk)
	assert.Equal(t, "100.05", l1.BestAskPx)
	assert.Equal(t, 2, l1.Orders)
	assert.Equal(t, uint64(3), l1.Seq)

	lvl, err := c.PriceLevel(ctx, &PriceLevelRequest{Price: 10005, Side: "sell"})
	require.NoError(t, err)
	assert.True(t, lvl.Found)
	assert.Equal(t, Level{Price: 10005, Px: "100.05", Qty: 4, Orders: 1}, lvl.Level)

	lvl, err = c.PriceLevel(ctx, &PriceLevelRequest{Price: 10005, Side: "buy"})
	require.NoError(t, err)
	assert.False(t, lvl.Found)
}

func TestAmendCancelDepth(t *testing.T) {
	c, svc := setup(t)
	ctx := context.Background()

	for i, p := range []int64{100, 99, 98} {
		_, err := c.Submit(ctx, &SubmitRequest{ID: uint64(i + 1), Price: p, Qty: 5, Side: "buy"})
		require.NoError(t, err)
	}

	ack, err := c.Amend(ctx, &AmendRequest{ID: 2, Delta: 3})
	require.NoError(t, err)
	assert.True(t, ack.Accepted)

	ack, err = c.Cancel(ctx, &CancelRequest{ID: 1})
	require.NoError(t, err)
	assert.True(t, ack.Accepted)

	ack, err = c.Cancel(ctx, &CancelRequest{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, "unknown_order", ack.Status)

	depth, err := c.Depth(ctx, &DepthRequest{Side: "buy", Levels: 5})
	require.NoError(t, err)
	require.Len(t, depth.Levels, 2)
	assert.Equal(t, int64(99), depth.Levels[0].Price)
	assert.Equal(t, uint64(8), depth.Levels[0].Qty)
	assert.Equal(t, int64(98), depth.Levels[1].Price)

	_, err = c.Clear(ctx, &ClearRequest{})
	require.NoError(t, err)
	assert.Equal(t, orderbook.L1{BestAsk: orderbook.NoAsk}, svc.SnapshotL1())
}

func TestEmptySidesReportSentinels(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	l1, err := c.SnapshotL1(ctx, &SnapshotL1Request{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), l1.BestBid)
	assert.Equal(t, orderbook.NoAsk, l1.BestAsk)
	assert.Empty(t, l1.BestBidPx)
	assert.Empty(t, l1.BestAskPx)

	top, err := c.TopOfBook(ctx, &TopOfBookRequest{Side: "sell"})
	require.NoError(t, err)
	assert.Equal(t, orderbook.NoAsk, top.Price)
	assert.Empty(t, top.Px)
}

func TestInvalidArguments(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()

	_, err := c.Submit(ctx, &SubmitRequest{ID: 1, Price: 1, Qty: 1, Side: "sideways"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Submit(ctx, &SubmitRequest{ID: 1, Px: "100.001", Qty: 1, Side: "buy"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Depth(ctx, &DepthRequest{Side: "buy", Levels: -1})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.TopOfBook(ctx, &TopOfBookRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRequestIDEchoed(t *testing.T) {
	c, _ := setup(t)
	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDKey, "req-42")

	var header metadata.MD
	_, err := c.SnapshotL1(ctx, &SnapshotL1Request{}, grpc.Header(&header))
	require.NoError(t, err)
	assert.Equal(t, []string{"req-42"}, header.Get(requestIDKey))

	_, err = c.SnapshotL1(context.Background(), &SnapshotL1Request{}, grpc.Header(&header))
	require.NoError(t, err)
	require.Len(t, header.Get(requestIDKey), 1)
	assert.NotEmpty(t, header.Get(requestIDKey)[0])
}

func TestStoppedServiceIsUnavailable(t *testing.T) {
	assert.Equal(t, codes.Unavailable, status.Code(toStatus(service.ErrStopped)))
	assert.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled)))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.DeadlineExceeded)))
}
