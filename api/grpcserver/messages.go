package grpcserver

// -------------------- Commands --------------------

// SubmitRequest carries the price either in ticks or, when Px is set, as a
// decimal string converted with the server's tick size.
type SubmitRequest struct {
	ID    uint64 `json:"id"`
	Price int64  `json:"price,omitempty"`
	Px    string `json:"px,omitempty"`
	Qty   uint64 `json:"qty"`
	Side  string `json:"side"`
}

type AmendRequest struct {
	ID    uint64 `json:"id"`
	Delta int64  `json:"delta"`
}

type CancelRequest struct {
	ID uint64 `json:"id"`
}

// Ack reports the book's verdict. A rejected event is a normal response,
// not an RPC error.
type Ack struct {
	Accepted bool   `json:"accepted"`
	Status   string `json:"status"`
}

type ClearRequest struct{}

type ClearResponse struct{}

// -------------------- Queries --------------------

type TopOfBookRequest struct {
	Side string `json:"side"`
}

type TopOfBookResponse struct {
	Price  int64  `json:"price"`
	Px     string `json:"px,omitempty"`
	Qty    uint64 `json:"qty"`
	Orders uint32 `json:"orders"`
	Seq    uint64 `json:"seq"`
}

type SnapshotL1Request struct{}

type SnapshotL1Response struct {
	BestBid   int64  `json:"best_bid"`
	BestAsk   int64  `json:"best_ask"`
	BidQty    uint64 `json:"bid_qty"`
	AskQty    uint64 `json:"ask_qty"`
	BestBidPx string `json:"best_bid_px,omitempty"`
	BestAskPx string `json:"best_ask_px,omitempty"`
	Seq       uint64 `json:"seq"`
	Orders    int    `json:"orders"`
}

type PriceLevelRequest struct {
	Price int64  `json:"price"`
	Side  string `json:"side"`
}

type Level struct {
	Price  int64  `json:"price"`
	Px     string `json:"px"`
	Qty    uint64 `json:"qty"`
	Orders uint32 `json:"orders"`
}

type PriceLevelResponse struct {
	Found bool  `json:"found"`
	Level Level `json:"level"`
}

type DepthRequest struct {
	Side   string `json:"side"`
	Levels int    `json:"levels"`
}

type DepthResponse struct {
	Levels []Level `json:"levels"`
}
