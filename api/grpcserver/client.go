package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

// Client is a typed client for tickbook.v1.OrderBook.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Submit(ctx context.Context, req *SubmitRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[Ack](ctx, c.cc, "Submit", req, opts)
}

func (c *Client) Amend(ctx context.Context, req *AmendRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[Ack](ctx, c.cc, "Amend", req, opts)
}

func (c *Client) Cancel(ctx context.Context, req *CancelRequest, opts ...grpc.CallOption) (*Ack, error) {
	return invoke[Ack](ctx, c.cc, "Cancel", req, opts)
}

func (c *Client) Clear(ctx context.Context, req *ClearRequest, opts ...grpc.CallOption) (*ClearResponse, error) {
	return invoke[ClearResponse](ctx, c.cc, "Clear", req, opts)
}

func (c *Client) TopOfBook(ctx context.Context, req *TopOfBookRequest, opts ...grpc.CallOption) (*TopOfBookResponse, error) {
	return invoke[TopOfBookResponse](ctx, c.cc, "TopOfBook", req, opts)
}

func (c *Client) SnapshotL1(ctx context.Context, req *SnapshotL1Request, opts ...grpc.CallOption) (*SnapshotL1Response, error) {
	return invoke[SnapshotL1Response](ctx, c.cc, "SnapshotL1", req, opts)
}

func (c *Client) PriceLevel(ctx context.Context, req *PriceLevelRequest, opts ...grpc.CallOption) (*PriceLevelResponse, error) {
	return invoke[PriceLevelResponse](ctx, c.cc, "PriceLevel", req, opts)
}

func (c *Client) Depth(ctx context.Context, req *DepthRequest, opts ...grpc.CallOption) (*DepthResponse, error) {
	return invoke[DepthResponse](ctx, c.cc, "Depth", req, opts)
}
