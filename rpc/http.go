package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"coinbet/config"
	"coinbet/core"
	"coinbet/native/housepool"
	"coinbet/native/slotgame"
	"coinbet/native/token"
	"coinbet/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// ServerConfig carries the RPC layer settings.
type ServerConfig struct {
	AuthToken   string
	Coordinator [20]byte
	RateLimit   float64
	RateBurst   int
	Metrics     *observability.GameMetrics
	Logger      *slog.Logger
}

// Server exposes the node over JSON-RPC 2.0.
type Server struct {
	node        *core.Node
	authToken   string
	coordinator [20]byte
	metrics     *observability.GameMetrics
	logger      *slog.Logger

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	rateLimit rate.Limit
	rateBurst int
}

// NewServer constructs the RPC server around a node.
func NewServer(node *core.Node, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 50
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 100
	}
	return &Server{
		node:        node,
		authToken:   strings.TrimSpace(cfg.AuthToken),
		coordinator: cfg.Coordinator,
		metrics:     cfg.Metrics,
		logger:      logger,
		limiters:    make(map[string]*rate.Limiter),
		rateLimit:   rate.Limit(limit),
		rateBurst:   burst,
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func (s *Server) allowSource(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(s.rateLimit, s.rateBurst)
		s.limiters[host] = limiter
	}
	return limiter.Allow()
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	bearer := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if bearer == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(bearer), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// Handle is the JSON-RPC entry point mounted on the router.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() { _ = reader.Close() }()

	w.Header().Set("Content-Type", "application/json")

	if !s.allowSource(r) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	started := time.Now()
	outcome := s.dispatch(w, r, req)
	if s.metrics != nil {
		s.metrics.ObserveRPC(req.Method, outcome, time.Since(started).Seconds())
	}
}

// dispatch routes a request to its handler and reports the outcome label used
// for metrics.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	authenticated := map[string]bool{
		"pool_addLiquidity":          true,
		"pool_removeLiquidity":       true,
		"pool_finalizeEpoch":         true,
		"pool_withdrawProtocolFees":  true,
		"pool_setExitFee":            true,
		"pool_setMaxCap":             true,
		"pool_setMaxPayoutRatio":     true,
		"pool_setFeeWaiverThreshold": true,
		"pool_setEpochBonus":         true,
		"slots_deposit":              true,
		"slots_withdraw":             true,
		"slots_placeBet":             true,
		"slots_cancelExpiredBet":     true,
		"slots_setBetLimits":         true,
		"slots_setProtocolFee":       true,
		"slots_setWithdrawWindow":    true,
		"oracle_fulfillRandomWords":  true,
	}
	if authenticated[req.Method] {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return "unauthorized"
		}
	}
	switch req.Method {
	case "pool_addLiquidity":
		return s.handleAddLiquidity(w, req)
	case "pool_removeLiquidity":
		return s.handleRemoveLiquidity(w, req)
	case "pool_getInfo":
		return s.handlePoolInfo(w, req)
	case "pool_getShareBalance":
		return s.handleShareBalance(w, req)
	case "pool_finalizeEpoch":
		return s.handleFinalizeEpoch(w, req)
	case "pool_withdrawProtocolFees":
		return s.handleWithdrawProtocolFees(w, req)
	case "pool_setExitFee":
		return s.handleSetExitFee(w, req)
	case "pool_setMaxCap":
		return s.handleSetMaxCap(w, req)
	case "pool_setMaxPayoutRatio":
		return s.handleSetMaxPayoutRatio(w, req)
	case "pool_setFeeWaiverThreshold":
		return s.handleSetFeeWaiverThreshold(w, req)
	case "pool_setEpochBonus":
		return s.handleSetEpochBonus(w, req)
	case "slots_deposit":
		return s.handleDeposit(w, req)
	case "slots_withdraw":
		return s.handleWithdraw(w, req)
	case "slots_placeBet":
		return s.handlePlaceBet(w, r, req)
	case "slots_cancelExpiredBet":
		return s.handleCancelExpiredBet(w, req)
	case "slots_getBalance":
		return s.handleGetBalance(w, req)
	case "slots_getRewardBalance":
		return s.handleGetRewardBalance(w, req)
	case "slots_getPendingBet":
		return s.handleGetPendingBet(w, req)
	case "slots_getGame":
		return s.handleGetGame(w, req)
	case "slots_getHistory":
		return s.handleGetHistory(w, req)
	case "slots_setBetLimits":
		return s.handleSetBetLimits(w, req)
	case "slots_setProtocolFee":
		return s.handleSetProtocolFee(w, req)
	case "slots_setWithdrawWindow":
		return s.handleSetWithdrawWindow(w, req)
	case "oracle_fulfillRandomWords":
		return s.handleFulfillRandomWords(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
		return "not_found"
	}
}

func paramObject(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return fmt.Errorf("parameter object required")
	}
	if len(req.Params) > 1 {
		return fmt.Errorf("too many parameters")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(raw string) ([20]byte, error) {
	return config.ParseAddress(raw)
}

func parseWei(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

func parseRequestID(raw string) ([32]byte, error) {
	var id [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("invalid request id %q: %w", raw, err)
	}
	if len(decoded) != len(id) {
		return id, fmt.Errorf("request id must be %d bytes", len(id))
	}
	copy(id[:], decoded)
	return id, nil
}

// writeEngineError maps engine errors onto JSON-RPC error codes.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) string {
	switch {
	case errors.Is(err, housepool.ErrUnauthorized), errors.Is(err, slotgame.ErrUnauthorized),
		errors.Is(err, slotgame.ErrUnauthorizedCallback):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	case errors.Is(err, housepool.ErrInvalidAmount), errors.Is(err, housepool.ErrInvalidParam),
		errors.Is(err, housepool.ErrCapacityExceeded), errors.Is(err, housepool.ErrInsufficientShares),
		errors.Is(err, housepool.ErrInsufficientLiquidity),
		errors.Is(err, slotgame.ErrInvalidAmount), errors.Is(err, slotgame.ErrInvalidParam),
		errors.Is(err, slotgame.ErrInsufficientBalance), errors.Is(err, slotgame.ErrInsufficientLiquidity),
		errors.Is(err, slotgame.ErrContractCallerForbidden), errors.Is(err, slotgame.ErrUnknownRequest),
		errors.Is(err, slotgame.ErrWagerNotExpired),
		errors.Is(err, token.ErrInvalidAmount), errors.Is(err, token.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
	return "error"
}

func (s *Server) handleAddLiquidity(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Provider  string `json:"provider"`
		AmountWei string `json:"amountWei"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	provider, err := parseAddress(params.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	amount, err := parseWei(params.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	minted, err := s.node.AddLiquidity(provider, amount)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"sharesMinted": minted.String()})
	return "ok"
}

func (s *Server) handleRemoveLiquidity(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Provider  string `json:"provider"`
		SharesWei string `json:"sharesWei"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	provider, err := parseAddress(params.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	shares, err := parseWei(params.SharesWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	net, err := s.node.RemoveLiquidity(provider, shares)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"netAmountWei": net.String()})
	return "ok"
}

type poolInfoResult struct {
	CapitalWei            string `json:"capitalWei"`
	ReservedWei           string `json:"reservedWei"`
	ProtocolFeeReserveWei string `json:"protocolFeeReserveWei"`
	MaxCapWei             string `json:"maxCapWei"`
	ExitFeeBps            uint32 `json:"exitFeeBps"`
	MaxPayoutRatioNum     uint64 `json:"maxPayoutRatioNum"`
	MaxPayoutRatioDen     uint64 `json:"maxPayoutRatioDen"`
	EpochLength           uint64 `json:"epochLength"`
	EpochStartedAt        uint64 `json:"epochStartedAt"`
	ShareSupplyWei        string `json:"shareSupplyWei"`
	IncentiveMode         bool   `json:"incentiveMode"`
}

func (s *Server) handlePoolInfo(w http.ResponseWriter, req *RPCRequest) string {
	snapshot, err := s.node.PoolInfo()
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	pool := snapshot.Pool
	writeResult(w, req.ID, poolInfoResult{
		CapitalWei:            pool.Capital.String(),
		ReservedWei:           pool.Reserved.String(),
		ProtocolFeeReserveWei: pool.ProtocolFeeReserve.String(),
		MaxCapWei:             pool.MaxCap.String(),
		ExitFeeBps:            pool.ExitFeeBps,
		MaxPayoutRatioNum:     pool.MaxPayoutRatioNum,
		MaxPayoutRatioDen:     pool.MaxPayoutRatioDen,
		EpochLength:           pool.EpochLength,
		EpochStartedAt:        pool.EpochStartedAt,
		ShareSupplyWei:        snapshot.ShareSupply.String(),
		IncentiveMode:         pool.IncentiveMode,
	})
	return "ok"
}

func (s *Server) handleShareBalance(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Address string `json:"address"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	shares, err := s.node.ShareBalance(addr)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"sharesWei": shares.String()})
	return "ok"
}

func (s *Server) handleFinalizeEpoch(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller string `json:"caller"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	advanced, err := s.node.FinalizeEpoch(caller)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"advanced": advanced})
	return "ok"
}

func (s *Server) handleWithdrawProtocolFees(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller string `json:"caller"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	amount, err := s.node.WithdrawProtocolFees(caller)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"amountWei": amount.String()})
	return "ok"
}

func (s *Server) handleDeposit(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Recipient string `json:"recipient"`
		AmountWei string `json:"amountWei"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	amount, err := parseWei(params.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.node.DepositFunds(recipient, amount); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}

func (s *Server) handleWithdraw(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Bettor    string `json:"bettor"`
		AmountWei string `json:"amountWei"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	bettor, err := parseAddress(params.Bettor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	amount, err := parseWei(params.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.node.WithdrawFunds(bettor, amount); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}

func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request, req *RPCRequest) string {
	var params struct {
		Bettor    string `json:"bettor"`
		AmountWei string `json:"amountWei"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	bettor, err := parseAddress(params.Bettor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	amount, err := parseWei(params.AmountWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	wager, err := s.node.PlaceWager(r.Context(), bettor, amount)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{
		"requestId":         "0x" + hex.EncodeToString(wager.RequestID[:]),
		"netWagerWei":       wager.NetWager.String(),
		"reservedPayoutWei": wager.ReservedPayout.String(),
	})
	return "ok"
}

func (s *Server) handleCancelExpiredBet(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller    string `json:"caller"`
		RequestID string `json:"requestId"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	requestID, err := parseRequestID(params.RequestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	refund, err := s.node.CancelExpiredWager(caller, requestID)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"refundWei": refund.String()})
	return "ok"
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Address string `json:"address"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"balanceWei": balance.String()})
	return "ok"
}

func (s *Server) handleGetRewardBalance(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Address string `json:"address"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	balance, err := s.node.RewardBalance(addr)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]string{"balanceWei": balance.String()})
	return "ok"
}

func (s *Server) handleGetPendingBet(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		RequestID string `json:"requestId"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	requestID, err := parseRequestID(params.RequestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	wager, ok, err := s.node.PendingWager(requestID)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return "ok"
	}
	writeResult(w, req.ID, map[string]interface{}{
		"requestId":         "0x" + hex.EncodeToString(wager.RequestID[:]),
		"bettor":            "0x" + hex.EncodeToString(wager.Bettor[:]),
		"netWagerWei":       wager.NetWager.String(),
		"reservedPayoutWei": wager.ReservedPayout.String(),
		"placedAt":          wager.PlacedAt,
	})
	return "ok"
}

func (s *Server) handleGetGame(w http.ResponseWriter, req *RPCRequest) string {
	game, err := s.node.Game()
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]interface{}{
		"minBetWei":             game.MinBet.String(),
		"maxBetWei":             game.MaxBet.String(),
		"protocolFeeBps":        game.ProtocolFeeBps,
		"withdrawWindowSeconds": game.WithdrawWindow,
		"numWords":              game.NumWords,
	})
	return "ok"
}

func (s *Server) handleGetHistory(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Address string `json:"address"`
		Limit   int    `json:"limit"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	store := s.node.History()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "bet history not enabled", nil)
		return "error"
	}
	limit := params.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if strings.TrimSpace(params.Address) == "" {
		records, err := store.Recent(limit)
		if err != nil {
			return writeEngineError(w, req.ID, err)
		}
		writeResult(w, req.ID, records)
		return "ok"
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	records, err := store.ListByBettor(addr, limit)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, records)
	return "ok"
}

func (s *Server) handleFulfillRandomWords(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		RequestID   string   `json:"requestId"`
		RandomWords []string `json:"randomWords"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	requestID, err := parseRequestID(params.RequestID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if len(params.RandomWords) == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "randomWords required", nil)
		return "invalid_params"
	}
	words := make([]*big.Int, len(params.RandomWords))
	for i, raw := range params.RandomWords {
		word, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
		if !ok || word.Sign() < 0 {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("invalid random word %q", raw), nil)
			return "invalid_params"
		}
		words[i] = word
	}
	settlement, err := s.node.FulfillRandomWords(s.coordinator, requestID, words)
	if err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]interface{}{
		"bettor":    "0x" + hex.EncodeToString(settlement.Bettor[:]),
		"outcome":   settlement.Outcome,
		"reels":     settlement.Reels,
		"payoutWei": settlement.Payout.String(),
	})
	return "ok"
}

func (s *Server) handleSetExitFee(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller string `json:"caller"`
		Bps    uint32 `json:"bps"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.node.UpdateExitFeeBps(caller, params.Bps); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}

func (s *Server) handleSetMaxCap(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller    string `json:"caller"`
		MaxCapWei string `json:"maxCapWei"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	maxCap, err := parseWei(params.MaxCapWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.node.UpdateMaxCap(caller, maxCap); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}

func (s *Server) handleSetMaxPayoutRatio(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller string `json:"caller"`
		Num    uint64 `json:"num"`
		Den    uint64 `json:"den"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.node.UpdateMaxPayoutRatio(caller, params.Num, params.Den); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}

func (s *Server) handleSetFeeWaiverThreshold(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller       string `json:"caller"`
		ThresholdWei string `json:"thresholdWei"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	threshold, err := parseWei(params.ThresholdWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.node.UpdateFeeWaiverThreshold(caller, threshold); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}

func (s *Server) handleSetEpochBonus(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller        string `json:"caller"`
		BonusWei      string `json:"bonusWei"`
		IncentiveMode bool   `json:"incentiveMode"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	bonus, err := parseWei(params.BonusWei)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.node.UpdateEpochBonus(caller, bonus, params.IncentiveMode); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}

func (s *Server) handleSetBetLimits(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller    string `json:"caller"`
		MinBetWei string `json:"minBetWei"`
		MaxBetWei string `json:"maxBetWei"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if strings.TrimSpace(params.MinBetWei) != "" {
		minBet, err := parseWei(params.MinBetWei)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return "invalid_params"
		}
		if err := s.node.UpdateMinBet(caller, minBet); err != nil {
			return writeEngineError(w, req.ID, err)
		}
	}
	if strings.TrimSpace(params.MaxBetWei) != "" {
		maxBet, err := parseWei(params.MaxBetWei)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return "invalid_params"
		}
		if err := s.node.UpdateMaxBet(caller, maxBet); err != nil {
			return writeEngineError(w, req.ID, err)
		}
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}

func (s *Server) handleSetProtocolFee(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller string `json:"caller"`
		Bps    uint32 `json:"bps"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.node.UpdateProtocolFeeBps(caller, params.Bps); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}

func (s *Server) handleSetWithdrawWindow(w http.ResponseWriter, req *RPCRequest) string {
	var params struct {
		Caller  string `json:"caller"`
		Seconds uint64 `json:"seconds"`
	}
	if err := paramObject(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return "invalid_params"
	}
	if err := s.node.UpdateWithdrawWindow(caller, params.Seconds); err != nil {
		return writeEngineError(w, req.ID, err)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
	return "ok"
}
