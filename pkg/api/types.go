package api

import "tradesim/pkg/sim"

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Request Types
// ==============================

// OrderActionRequest is the payload for /removeOrder, /restoreFromTrash and
// /deleteFromTrash.
type OrderActionRequest struct {
	OrderID string `json:"orderId"`
	Email   string `json:"email"`
}

// CredentialsRequest is the payload for /register and /login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PlaceOrderRequest is the payload for /placeOrder.
type PlaceOrderRequest struct {
	Email  string `json:"email"`
	Side   string `json:"side"` // "buy" or "sell"
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"` // "market" or "limit"
	Qty    int64  `json:"qty"`
	Price  int64  `json:"price"` // required for limit orders, cents
}

// WatchlistRequest is the payload for /watchlist/add and /watchlist/remove.
type WatchlistRequest struct {
	Email  string `json:"email"`
	Symbol string `json:"symbol"`
}

// ==============================
// REST Response Types
// ==============================

// OrderActionResponse is returned by the three lifecycle mutations.
type OrderActionResponse struct {
	Message    string `json:"message"`
	OrderID    string `json:"orderId"`
	TrashCount int    `json:"trashCount"`
}

// TrashResponse is returned by /getTrash.
type TrashResponse struct {
	Trash      []sim.Order `json:"trash"`
	TrashCount int         `json:"trashCount"`
}

// OrdersResponse is returned by /getOrders.
type OrdersResponse struct {
	BuyOrders  []sim.Order `json:"buyOrders"`
	SellOrders []sim.Order `json:"sellOrders"`
}

// CleanupResponse is returned by /cleanupLimitOrders.
type CleanupResponse struct {
	Message      string                 `json:"message"`
	RemovedCount int                    `json:"removedCount"`
	Timestamp    string                 `json:"timestamp"`
	Failures     []sim.UserCleanupError `json:"failures,omitempty"`
}

// PlaceOrderResponse is returned by /placeOrder.
type PlaceOrderResponse struct {
	Message string    `json:"message"`
	Order   sim.Order `json:"order"`
}

// WatchlistResponse is returned by the /watchlist endpoints.
type WatchlistResponse struct {
	Watchlist []string `json:"watchlist"`
}

// QuoteResponse is returned by /quote.
type QuoteResponse struct {
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by a client to subscribe to channels,
// e.g. ["quotes:AAPL"].
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// QuoteUpdate is broadcast on every feed tick.
type QuoteUpdate struct {
	Type      string `json:"type"` // "quote"
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`
	Timestamp int64  `json:"timestamp"`
}
