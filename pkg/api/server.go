package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/cdabook/pkg/app/core/orderbook"
	"github.com/uhyunpark/cdabook/pkg/app/market"
)

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 1000
)

// Server handles REST API and WebSocket connections
type Server struct {
	app     *market.App
	router  *mux.Router
	hub     *Hub // WebSocket hub
	origins []string
	logger  *zap.SugaredLogger
	http    *http.Server
}

// NewServer creates a new API server
func NewServer(app *market.App, origins []string, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		app:     app,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		origins: origins,
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API v1 routes
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Book endpoints
	api.HandleFunc("/goods", s.handleGetGoods).Methods("GET")
	api.HandleFunc("/goods/{good}/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/goods/{good}/trades", s.handleGetTrades).Methods("GET")

	// Account endpoints
	api.HandleFunc("/accounts/{owner}", s.handleGetAccount).Methods("GET")

	// Order submission and matching
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")
	api.HandleFunc("/match", s.handleMatch).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in the CORS policy
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start starts the hub and serves until Shutdown is called
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Infow("api_server_listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Infow("api_server_stopping", "ws_clients", s.hub.ClientCount())
	return s.http.Shutdown(ctx)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetGoods(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.app.Books().Goods())
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	good := mux.Vars(r)["good"]

	snap, ok := s.app.Snapshot(good)
	if !ok {
		respondError(w, http.StatusNotFound, "book not found", good)
		return
	}
	respondJSON(w, toBookSnapshot(snap))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	good := mux.Vars(r)["good"]

	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = min(n, maxTradeLimit)
	}

	trades, err := s.app.Journal().Recent(good, limit)
	if err != nil {
		s.logger.Errorw("journal_read_failed", "good", good, "err", err)
		respondError(w, http.StatusInternalServerError, "journal unavailable", err.Error())
		return
	}
	out := make([]TradeInfo, 0, len(trades))
	for _, tr := range trades {
		out = append(out, toTradeInfo(tr))
	}
	respondJSON(w, out)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]

	acc, ok := s.app.Ledger().Account(owner)
	if !ok {
		respondError(w, http.StatusNotFound, "account not found", owner)
		return
	}
	respondJSON(w, AccountInfo{
		Owner:      acc.Owner,
		Cash:       acc.Cash,
		Inventory:  acc.Inventory,
		Bought:     acc.Bought,
		Sold:       acc.Sold,
		Volume:     acc.Volume,
		TradeCount: acc.TradeCount,
	})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Good == "" {
		respondError(w, http.StatusBadRequest, "missing good", "")
		return
	}
	side, err := orderbook.ParseSide(req.Side)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	o, err := s.app.Submit(req.Good, side, req.Price, req.Quantity, req.Owner)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orderbook.ErrInvalidOrder) {
			status = http.StatusBadRequest
		}
		respondError(w, status, "invalid order", err.Error())
		return
	}

	respondStatus(w, http.StatusCreated, toOrderInfo(o))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Good == "" || req.OrderID == 0 {
		respondError(w, http.StatusBadRequest, "missing good or orderId", "")
		return
	}

	o, err := s.app.Cancel(req.Good, req.OrderID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, orderbook.ErrOrderNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, status, "cancel failed", err.Error())
		return
	}
	respondJSON(w, toOrderInfo(o))
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	results, err := s.app.MatchAll(r.Context())
	if err != nil {
		s.logger.Errorw("match_failed", "err", err)
		respondError(w, http.StatusInternalServerError, "match failed", err.Error())
		return
	}

	resp := MatchResponse{Trades: make(map[string][]TradeInfo, len(results))}
	for good, trades := range results {
		for _, tr := range trades {
			resp.Trades[good] = append(resp.Trades[good], toTradeInfo(tr))
		}
		resp.Count += len(trades)
	}
	respondJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Broadcast Methods (called from the match cycle)
// ==============================

// BroadcastBook sends the current book of good to "book:<good>" subscribers
func (s *Server) BroadcastBook(good string) {
	snap, ok := s.app.Snapshot(good)
	if !ok {
		return
	}
	s.hub.BroadcastToChannel("book:"+good, BookUpdate{Type: "book", BookSnapshot: toBookSnapshot(snap)})
}

// BroadcastTrade sends one trade to "trades:<good>" subscribers
func (s *Server) BroadcastTrade(tr orderbook.Trade) {
	s.hub.BroadcastToChannel("trades:"+tr.Good, TradeUpdate{Type: "trade", TradeInfo: toTradeInfo(tr)})
}

// ==============================
// Helper Functions
// ==============================

func toBookSnapshot(snap market.Snapshot) BookSnapshot {
	out := BookSnapshot{
		Good:      snap.Good,
		Bids:      toLevels(snap.Bids),
		Asks:      toLevels(snap.Asks),
		Spread:    snap.Spread,
		BidDepth:  snap.BidDepth,
		AskDepth:  snap.AskDepth,
		Timestamp: time.Now().UnixMilli(),
	}
	if snap.BestBid != nil {
		o := toOrderInfo(*snap.BestBid)
		out.BestBid = &o
	}
	if snap.BestAsk != nil {
		o := toOrderInfo(*snap.BestAsk)
		out.BestAsk = &o
	}
	return out
}

func toLevels(levels []orderbook.PriceLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Size: l.Qty, Orders: l.Orders}
	}
	return out
}

func toOrderInfo(o orderbook.Order) OrderInfo {
	return OrderInfo{
		ID:        o.ID,
		Good:      o.Good,
		Side:      o.Side.String(),
		Price:     o.Price,
		Remaining: o.Quantity,
		Owner:     o.Owner,
		Status:    o.Status.String(),
		Timestamp: o.Timestamp.UnixMilli(),
	}
}

func toTradeInfo(tr orderbook.Trade) TradeInfo {
	return TradeInfo{
		ID:          tr.ID.String(),
		Good:        tr.Good,
		Price:       tr.Price,
		Size:        tr.Quantity,
		Buyer:       tr.Buyer,
		Seller:      tr.Seller,
		BuyOrderID:  tr.BuyOrderID,
		SellOrderID: tr.SellOrderID,
		Timestamp:   tr.Timestamp.UnixMilli(),
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondStatus(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
