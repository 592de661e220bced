package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"tradesim/pkg/account"
	"tradesim/pkg/market"
	"tradesim/pkg/sim"
)

// WatchlistStore is the persistence contract for per-user watchlists.
type WatchlistStore struct {
	Save func(email string, symbols []string) error
	Load func(email string) ([]string, error)
}

// Server handles the REST API and WebSocket connections.
type Server struct {
	mgr        *sim.Manager
	accounts   *account.Facade
	feed       *market.Feed
	watchlists WatchlistStore

	router      *mux.Router
	hub         *Hub
	corsOrigins []string
	log         *zap.SugaredLogger
}

// NewServer wires the REST surface. The feed's ticks are forwarded to the
// websocket hub on channel "quotes:<symbol>".
func NewServer(mgr *sim.Manager, accounts *account.Facade, feed *market.Feed,
	watchlists WatchlistStore, corsOrigins []string, log *zap.SugaredLogger) *Server {

	s := &Server{
		mgr:         mgr,
		accounts:    accounts,
		feed:        feed,
		watchlists:  watchlists,
		router:      mux.NewRouter(),
		hub:         NewHub(log),
		corsOrigins: corsOrigins,
		log:         log,
	}

	feed.OnTick = func(t market.Tick) {
		s.hub.BroadcastToChannel("quotes:"+t.Symbol, QuoteUpdate{
			Type:      "quote",
			Symbol:    t.Symbol,
			Price:     t.Price,
			Timestamp: t.Timestamp,
		})
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Account
	s.router.HandleFunc("/register", s.handleRegister).Methods("POST")
	s.router.HandleFunc("/login", s.handleLogin).Methods("POST")

	// Order placement and listing
	s.router.HandleFunc("/placeOrder", s.handlePlaceOrder).Methods("POST")
	s.router.HandleFunc("/getOrders", s.handleGetOrders).Methods("GET")

	// Order lifecycle (trash subsystem)
	s.router.HandleFunc("/removeOrder", s.handleRemoveOrder).Methods("POST")
	s.router.HandleFunc("/restoreFromTrash", s.handleRestoreFromTrash).Methods("POST")
	s.router.HandleFunc("/deleteFromTrash", s.handleDeleteFromTrash).Methods("POST")
	s.router.HandleFunc("/getTrash", s.handleGetTrash).Methods("GET")

	// Cleanup: manual trigger and the path the external scheduler hits
	s.router.HandleFunc("/cleanupLimitOrders", s.handleCleanup).Methods("POST", "GET")

	// Watchlist
	s.router.HandleFunc("/watchlist/add", s.handleWatchlistAdd).Methods("POST")
	s.router.HandleFunc("/watchlist/remove", s.handleWatchlistRemove).Methods("POST")
	s.router.HandleFunc("/watchlist", s.handleWatchlistGet).Methods("GET")

	// Market data
	s.router.HandleFunc("/quote", s.handleQuote).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the fully wired handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start runs the websocket hub and serves HTTP on addr.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ==============================
// Account handlers
// ==============================

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := s.accounts.Register(req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, account.ErrExists):
			respondError(w, http.StatusConflict, "user already exists", "")
		case errors.Is(err, account.ErrInvalidEmail), errors.Is(err, account.ErrBadCredentials):
			respondError(w, http.StatusBadRequest, "invalid registration", err.Error())
		default:
			respondError(w, http.StatusInternalServerError, "registration failed", err.Error())
		}
		return
	}

	respondJSON(w, map[string]string{"message": "registered", "email": req.Email})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := s.accounts.Authenticate(req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, account.ErrNotFound), errors.Is(err, account.ErrBadCredentials):
			respondError(w, http.StatusUnauthorized, "invalid credentials", "")
		default:
			respondError(w, http.StatusInternalServerError, "login failed", err.Error())
		}
		return
	}

	respondJSON(w, map[string]string{"message": "ok", "email": req.Email})
}

// ==============================
// Order handlers
// ==============================

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var side sim.Side
	switch req.Side {
	case "buy":
		side = sim.SideBuy
	case "sell":
		side = sim.SideSell
	default:
		respondError(w, http.StatusBadRequest, "invalid side", "expected buy or sell")
		return
	}

	if req.Qty <= 0 {
		respondError(w, http.StatusBadRequest, "invalid qty", "must be positive")
		return
	}

	o := sim.Order{
		Symbol: req.Symbol,
		Qty:    req.Qty,
		Price:  req.Price,
		Status: sim.StatusPending,
	}

	switch sim.Kind(req.Kind) {
	case sim.KindMarket:
		// Simulated fill at the current mock quote; execution status is
		// decided here, not by the lifecycle subsystem.
		quote, err := s.feed.Quote(req.Symbol)
		if err != nil {
			respondError(w, http.StatusBadRequest, "unknown symbol", req.Symbol)
			return
		}
		o.Kind = sim.KindMarket
		o.Price = quote
		o.Status = sim.StatusCompleted
	case sim.KindLimit:
		if req.Price <= 0 {
			respondError(w, http.StatusBadRequest, "invalid price", "limit orders need a positive price")
			return
		}
		o.Kind = sim.KindLimit
	default:
		respondError(w, http.StatusBadRequest, "invalid kind", "expected market or limit")
		return
	}

	placed, err := s.mgr.PlaceOrder(req.Email, side, o)
	if err != nil {
		s.respondLifecycleError(w, err)
		return
	}

	respondJSON(w, PlaceOrderResponse{Message: "order placed", Order: placed})
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	buy, sell, err := s.mgr.ActiveOrders(email)
	if err != nil {
		s.respondLifecycleError(w, err)
		return
	}

	respondJSON(w, OrdersResponse{BuyOrders: buy, SellOrders: sell})
}

// ==============================
// Lifecycle handlers
// ==============================

// decodeOrderAction parses the shared {orderId, email} payload.
func decodeOrderAction(w http.ResponseWriter, r *http.Request) (OrderActionRequest, bool) {
	var req OrderActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) handleRemoveOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOrderAction(w, r)
	if !ok {
		return
	}

	count, err := s.mgr.MoveToTrash(req.Email, req.OrderID)
	if err != nil {
		s.respondLifecycleError(w, err)
		return
	}

	respondJSON(w, OrderActionResponse{
		Message:    "order moved to trash",
		OrderID:    req.OrderID,
		TrashCount: count,
	})
}

func (s *Server) handleRestoreFromTrash(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOrderAction(w, r)
	if !ok {
		return
	}

	count, err := s.mgr.RestoreFromTrash(req.Email, req.OrderID)
	if err != nil {
		s.respondLifecycleError(w, err)
		return
	}

	respondJSON(w, OrderActionResponse{
		Message:    "order restored",
		OrderID:    req.OrderID,
		TrashCount: count,
	})
}

func (s *Server) handleDeleteFromTrash(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOrderAction(w, r)
	if !ok {
		return
	}

	count, err := s.mgr.PurgeFromTrash(req.Email, req.OrderID)
	if err != nil {
		s.respondLifecycleError(w, err)
		return
	}

	respondJSON(w, OrderActionResponse{
		Message:    "order deleted permanently",
		OrderID:    req.OrderID,
		TrashCount: count,
	})
}

func (s *Server) handleGetTrash(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")

	trash, err := s.mgr.ListTrash(email)
	if err != nil {
		s.respondLifecycleError(w, err)
		return
	}

	respondJSON(w, TrashResponse{Trash: trash, TrashCount: len(trash)})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	res, err := s.mgr.RunCleanup()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "cleanup failed", err.Error())
		return
	}

	respondJSON(w, CleanupResponse{
		Message:      "cleanup complete",
		RemovedCount: res.RemovedCount,
		Timestamp:    res.Timestamp.Format(time.RFC3339),
		Failures:     res.Failures,
	})
}

// ==============================
// Watchlist handlers
// ==============================

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	var req WatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Email == "" || req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "missing email or symbol", "")
		return
	}
	if !s.userExists(w, req.Email) {
		return
	}

	symbols, err := s.watchlists.Load(req.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "load watchlist failed", err.Error())
		return
	}
	for _, sym := range symbols {
		if sym == req.Symbol {
			respondJSON(w, WatchlistResponse{Watchlist: symbols})
			return
		}
	}
	symbols = append(symbols, req.Symbol)
	if err := s.watchlists.Save(req.Email, symbols); err != nil {
		respondError(w, http.StatusInternalServerError, "save watchlist failed", err.Error())
		return
	}

	respondJSON(w, WatchlistResponse{Watchlist: symbols})
}

func (s *Server) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	var req WatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Email == "" || req.Symbol == "" {
		respondError(w, http.StatusBadRequest, "missing email or symbol", "")
		return
	}
	if !s.userExists(w, req.Email) {
		return
	}

	symbols, err := s.watchlists.Load(req.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "load watchlist failed", err.Error())
		return
	}
	kept := symbols[:0:0]
	for _, sym := range symbols {
		if sym != req.Symbol {
			kept = append(kept, sym)
		}
	}
	if kept == nil {
		kept = []string{}
	}
	if err := s.watchlists.Save(req.Email, kept); err != nil {
		respondError(w, http.StatusInternalServerError, "save watchlist failed", err.Error())
		return
	}

	respondJSON(w, WatchlistResponse{Watchlist: kept})
}

func (s *Server) handleWatchlistGet(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, "missing email", "")
		return
	}
	if !s.userExists(w, email) {
		return
	}

	symbols, err := s.watchlists.Load(email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "load watchlist failed", err.Error())
		return
	}

	respondJSON(w, WatchlistResponse{Watchlist: symbols})
}

// ==============================
// Market handlers
// ==============================

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		respondError(w, http.StatusBadRequest, "missing symbol", "")
		return
	}

	price, err := s.feed.Quote(symbol)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown symbol", symbol)
		return
	}

	respondJSON(w, QuoteResponse{
		Symbol:    symbol,
		Price:     price,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

// userExists resolves email, writing the error response itself when the user
// is missing or resolution fails. Returns true when the caller may proceed.
func (s *Server) userExists(w http.ResponseWriter, email string) bool {
	ok, err := s.accounts.Exists(email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "resolve user failed", err.Error())
		return false
	}
	if !ok {
		respondError(w, http.StatusNotFound, "user not found", email)
		return false
	}
	return true
}

// respondLifecycleError maps manager errors onto the HTTP contract:
// validation 400, unresolved user or absent order 404, storage 500.
func (s *Server) respondLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sim.ErrValidation):
		respondError(w, http.StatusBadRequest, "missing required field", err.Error())
	case errors.Is(err, sim.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "user not found", err.Error())
	case errors.Is(err, sim.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order not found", err.Error())
	case errors.Is(err, sim.ErrDuplicateID):
		respondError(w, http.StatusConflict, "duplicate order id", err.Error())
	default:
		s.log.Errorw("storage_error", "err", err)
		respondError(w, http.StatusInternalServerError, "storage error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
