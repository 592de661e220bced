package sim

// Side names the container an active order lives in. The same strings are
// stamped into OriginatingSide when an order is trashed, so a restored order
// goes back where it came from.
type Side string

const (
	SideBuy  Side = "buyOrders"
	SideSell Side = "sellOrders"
)

// Kind distinguishes market orders (simulated fill at the current quote) from
// limit orders (simulated resting orders, subject to daily cleanup while pending).
type Kind string

const (
	KindMarket Kind = "market"
	KindLimit  Kind = "limit"
)

// Status is the simulated execution state. It is set exogenously - this
// subsystem never decides whether an order fills.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// Order is a single simulated trade intent.
//
// ID is assigned at creation and never changes. OriginatingSide is present
// if and only if the order currently sits in the trash; it records which
// active container the order was removed from. Extra carries any additional
// attributes losslessly through container moves.
type Order struct {
	ID              string `json:"id"`
	Kind            Kind   `json:"kind"`
	Status          Status `json:"status"`
	OriginatingSide Side   `json:"originatingSide,omitempty"`

	Symbol string `json:"symbol"`
	Qty    int64  `json:"qty"`   // lots
	Price  int64  `json:"price"` // quote cents; 0 for market orders until filled

	CreatedAt int64 `json:"createdAt"` // Unix milliseconds

	Extra map[string]any `json:"extra,omitempty"`
}

// UserOrders is one user's full order document: both active sides plus the
// soft-delete trash. It is always persisted as a whole.
type UserOrders struct {
	BuyOrders  []Order `json:"buyOrders"`
	SellOrders []Order `json:"sellOrders"`
	Trash      []Order `json:"trash"`
}

// NewUserOrders returns an empty document with non-nil slices so it
// marshals as [] rather than null.
func NewUserOrders() *UserOrders {
	return &UserOrders{
		BuyOrders:  []Order{},
		SellOrders: []Order{},
		Trash:      []Order{},
	}
}

// Normalize replaces nil slices left behind by JSON unmarshal.
func (uo *UserOrders) Normalize() {
	if uo.BuyOrders == nil {
		uo.BuyOrders = []Order{}
	}
	if uo.SellOrders == nil {
		uo.SellOrders = []Order{}
	}
	if uo.Trash == nil {
		uo.Trash = []Order{}
	}
}

// Contains reports whether any container holds an order with the given id.
func (uo *UserOrders) Contains(orderID string) bool {
	for _, set := range [][]Order{uo.BuyOrders, uo.SellOrders, uo.Trash} {
		for _, o := range set {
			if o.ID == orderID {
				return true
			}
		}
	}
	return false
}

// findOrder returns the index of orderID in orders, or -1.
func findOrder(orders []Order, orderID string) int {
	for i, o := range orders {
		if o.ID == orderID {
			return i
		}
	}
	return -1
}

// removeAt removes the element at index i preserving the order of the rest.
func removeAt(orders []Order, i int) []Order {
	return append(orders[:i:i], orders[i+1:]...)
}
