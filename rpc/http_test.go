package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"coinbet/core"
	"coinbet/core/state"
	"coinbet/native/housepool"
	"coinbet/native/slotgame"
	"coinbet/oracle"
	"coinbet/storage"
)

const testToken = "rpc-secret"

const (
	ownerHex       = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	providerHex    = "0x0101010101010101010101010101010101010101"
	bettorHex      = "0x0202020202020202020202020202020202020202"
	coordinatorHex = "0xc0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0c0"
)

func mustAddr(t *testing.T, raw string) [20]byte {
	t.Helper()
	addr, err := parseAddress(raw)
	require.NoError(t, err)
	return addr
}

type rpcFixture struct {
	server *Server
	source *oracle.ManualSource
}

func newRPCFixture(t *testing.T) *rpcFixture {
	t.Helper()
	source := oracle.NewManualSource()
	node, err := core.NewNode(state.NewManager(storage.NewMemDB()), core.NodeConfig{
		Owner:       mustAddr(t, ownerHex),
		Coordinator: mustAddr(t, coordinatorHex),
		PoolParams:  housepool.DefaultParams(),
		GameParams:  slotgame.DefaultParams(),
		PayTable:    slotgame.DefaultPayTable(),
		Source:      source,
	})
	require.NoError(t, err)
	server := NewServer(node, ServerConfig{
		AuthToken:   testToken,
		Coordinator: mustAddr(t, coordinatorHex),
		RateLimit:   1000,
		RateBurst:   1000,
	})
	return &rpcFixture{server: server, source: source}
}

func (f *rpcFixture) call(t *testing.T, method string, params interface{}, authed bool) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(payload))
	req.RemoteAddr = "10.1.2.3:5555"
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	f.server.Handle(rec, req)
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func (f *rpcFixture) mustCall(t *testing.T, method string, params interface{}) map[string]interface{} {
	t.Helper()
	rec, resp := f.call(t, method, params, true)
	require.Nil(t, resp.Error, "method %s: %+v (status %d)", method, resp.Error, rec.Code)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "method %s returned %T", method, resp.Result)
	return result
}

func TestHandleRejectsMalformedRequests(t *testing.T) {
	fixture := newRPCFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader("{not json"))
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	fixture.server.Handle(rec, req)
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, codeParseError, resp.Error.Code)

	req = httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader("   "))
	req.RemoteAddr = "10.1.2.3:5555"
	rec = httptest.NewRecorder()
	fixture.server.Handle(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, codeInvalidRequest, resp.Error.Code)

	_, resp = fixture.call(t, "pool_teleport", nil, false)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMutatingMethodsRequireAuth(t *testing.T) {
	fixture := newRPCFixture(t)

	rec, resp := fixture.call(t, "pool_addLiquidity", map[string]string{
		"provider":  providerHex,
		"amountWei": "1000000000000000000",
	}, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	// Read-only methods stay open.
	_, resp = fixture.call(t, "pool_getInfo", nil, false)
	require.Nil(t, resp.Error)
}

func TestAuthRejectsWrongToken(t *testing.T) {
	fixture := newRPCFixture(t)

	payload := `{"jsonrpc":"2.0","id":1,"method":"pool_finalizeEpoch","params":[{"caller":"` + providerHex + `"}]}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(payload))
	req.RemoteAddr = "10.1.2.3:5555"
	req.Header.Set("Authorization", "Bearer wrong-token")
	rec := httptest.NewRecorder()
	fixture.server.Handle(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceBetAndFulfillOverRPC(t *testing.T) {
	fixture := newRPCFixture(t)

	fixture.mustCall(t, "pool_addLiquidity", map[string]string{
		"provider":  providerHex,
		"amountWei": "1000000000000000000",
	})
	fixture.mustCall(t, "slots_deposit", map[string]string{
		"recipient": bettorHex,
		"amountWei": "200000000000000000",
	})

	placed := fixture.mustCall(t, "slots_placeBet", map[string]string{
		"bettor":    bettorHex,
		"amountWei": "100000000000000000",
	})
	require.Equal(t, "98000000000000000", placed["netWagerWei"])
	requestID, ok := placed["requestId"].(string)
	require.True(t, ok)
	require.Len(t, strings.TrimPrefix(requestID, "0x"), 64)

	pending := fixture.mustCall(t, "slots_getPendingBet", map[string]string{
		"requestId": requestID,
	})
	require.Equal(t, bettorHex, pending["bettor"])

	// Outcome 1 pays 1.2x the net wager.
	settled := fixture.mustCall(t, "oracle_fulfillRandomWords", map[string]interface{}{
		"requestId":   requestID,
		"randomWords": []string{"1", "11", "21"},
	})
	require.Equal(t, "117600000000000000", settled["payoutWei"])
	require.Equal(t, float64(1), settled["outcome"])

	balance := fixture.mustCall(t, "slots_getBalance", map[string]string{
		"address": bettorHex,
	})
	require.Equal(t, "217600000000000000", balance["balanceWei"])

	info := fixture.mustCall(t, "pool_getInfo", nil)
	require.Equal(t, "980400000000000000", info["capitalWei"])
	require.Equal(t, "0", info["reservedWei"])

	// Replaying the fulfillment must fail.
	_, resp := fixture.call(t, "oracle_fulfillRandomWords", map[string]interface{}{
		"requestId":   requestID,
		"randomWords": []string{"1"},
	}, true)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestPoolInfoCallableWithoutParams(t *testing.T) {
	fixture := newRPCFixture(t)
	info := fixture.mustCall(t, "pool_getInfo", nil)
	require.Equal(t, "0", info["capitalWei"])
	require.Equal(t, "0", info["shareSupplyWei"])
	require.Equal(t, float64(500), info["exitFeeBps"])
}

func TestOwnerSettersMapEngineErrors(t *testing.T) {
	fixture := newRPCFixture(t)

	_, resp := fixture.call(t, "slots_setProtocolFee", map[string]interface{}{
		"caller": bettorHex,
		"bps":    300,
	}, true)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	result := fixture.mustCall(t, "slots_setProtocolFee", map[string]interface{}{
		"caller": ownerHex,
		"bps":    300,
	})
	require.Equal(t, true, result["ok"])

	game := fixture.mustCall(t, "slots_getGame", nil)
	require.Equal(t, float64(300), game["protocolFeeBps"])
}

func TestInvalidAmountsReportInvalidParams(t *testing.T) {
	fixture := newRPCFixture(t)

	_, resp := fixture.call(t, "pool_addLiquidity", map[string]string{
		"provider":  providerHex,
		"amountWei": "not-a-number",
	}, true)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = fixture.call(t, "slots_deposit", map[string]string{
		"recipient": "0xdeadbeef",
		"amountWei": "1",
	}, true)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestRateLimitSheds(t *testing.T) {
	fixture := newRPCFixture(t)
	fixture.server.rateLimit = 1
	fixture.server.rateBurst = 1

	payload := func() *strings.Reader {
		return strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"pool_getInfo"}`)
	}
	req := httptest.NewRequest(http.MethodPost, "/rpc", payload())
	req.RemoteAddr = "10.9.9.9:1234"
	rec := httptest.NewRecorder()
	fixture.server.Handle(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	limited := false
	for i := 0; i < 3; i++ {
		req = httptest.NewRequest(http.MethodPost, "/rpc", payload())
		req.RemoteAddr = "10.9.9.9:1234"
		rec = httptest.NewRecorder()
		fixture.server.Handle(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	require.True(t, limited, "expected a rate limited response")

	// A different source keeps its own budget.
	req = httptest.NewRequest(http.MethodPost, "/rpc", payload())
	req.RemoteAddr = "10.8.8.8:1234"
	rec = httptest.NewRecorder()
	fixture.server.Handle(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHistoryDisabledReportsServerError(t *testing.T) {
	fixture := newRPCFixture(t)
	_, resp := fixture.call(t, "slots_getHistory", map[string]interface{}{"limit": 10}, false)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeServerError, resp.Error.Code)
}

func TestRouterWiresEndpoints(t *testing.T) {
	fixture := newRPCFixture(t)
	router := fixture.server.Router()
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	metricsResp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = metricsResp.Body.Close() }()
	require.Equal(t, http.StatusOK, metricsResp.StatusCode)

	rpcResp, err := http.Post(ts.URL+"/rpc", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"pool_getInfo"}`))
	require.NoError(t, err)
	defer func() { _ = rpcResp.Body.Close() }()
	require.Equal(t, http.StatusOK, rpcResp.StatusCode)
	var body RPCResponse
	require.NoError(t, json.NewDecoder(rpcResp.Body).Decode(&body))
	require.Nil(t, body.Error)
}
