package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"solstice/native/sale"
	"solstice/native/treasury"
	"solstice/state"
	"solstice/storage"
)

const (
	testToken = "test-admin-token"
	adminHex  = "0x00000000000000000000000000000000000000ad"
	buyerHex  = "0x0000000000000000000000000000000000000001"
)

type allowAdmin struct {
	admin [20]byte
}

func (a allowAdmin) IsAdmin(addr [20]byte) bool { return addr == a.admin }

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func newTestServer(t *testing.T, now int64) *Server {
	t.Helper()
	t.Setenv("SOLSTICE_RPC_TOKEN", testToken)

	mgr := state.NewManager(storage.NewMemDB())
	ledger := state.NewLedger(mgr)

	saleEngine := sale.NewEngine()
	saleEngine.SetState(mgr)
	saleEngine.SetLedger(ledger)
	saleEngine.SetAuthorizer(allowAdmin{admin: testAddr(0xAD)})
	saleEngine.SetRewardsVault(testAddr(0xEE))
	saleEngine.SetNowFunc(func() int64 { return now })

	treasuryEngine := treasury.NewEngine()
	treasuryEngine.SetState(mgr)
	treasuryEngine.SetLedger(ledger)
	treasuryEngine.SetVault(testAddr(0xEE), sale.TokenReward)

	return NewServer(saleEngine, treasuryEngine)
}

func rpcCall(t *testing.T, server *Server, method string, params any, token string) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	body := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		body["params"] = []any{params}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)

	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, recorder.Body.String())
	}
	return recorder, resp
}

func initializeSale(t *testing.T, server *Server) {
	t.Helper()
	_, resp := rpcCall(t, server, "sale_initialize", map[string]any{
		"caller":         adminHex,
		"startTimestamp": 1_000,
		"cap":            "1000000",
		"phases": []map[string]any{
			{"tokenPrice": "10", "duration": 1_000},
		},
	}, testToken)
	if resp.Error != nil {
		t.Fatalf("sale initialization failed: %+v", resp.Error)
	}
}

func TestRequiresPost(t *testing.T) {
	server := newTestServer(t, 1_500)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestRejectsMalformedJSON(t *testing.T) {
	server := newTestServer(t, 1_500)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)

	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	server := newTestServer(t, 1_500)
	recorder, resp := rpcCall(t, server, "sale_unknown", map[string]any{}, "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got %+v", resp.Error)
	}
}

func TestAdminMethodsRequireBearerToken(t *testing.T) {
	server := newTestServer(t, 1_500)
	params := map[string]any{
		"caller":         adminHex,
		"startTimestamp": 1_000,
		"cap":            "1000000",
		"phases":         []map[string]any{{"tokenPrice": "10", "duration": 1_000}},
	}

	recorder, resp := rpcCall(t, server, "sale_initialize", params, "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized error, got %+v", resp.Error)
	}

	recorder, resp = rpcCall(t, server, "sale_initialize", params, "wrong-token")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", recorder.Code)
	}

	recorder, resp = rpcCall(t, server, "sale_initialize", params, testToken)
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("expected success with valid token: %d %+v", recorder.Code, resp.Error)
	}
}

func TestPurchaseFlowOverRPC(t *testing.T) {
	server := newTestServer(t, 1_500)
	initializeSale(t, server)

	recorder, resp := rpcCall(t, server, "sale_purchase", map[string]any{
		"buyer":      buyerHex,
		"amountPaid": "10005",
	}, "")
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("purchase failed: %d %+v", recorder.Code, resp.Error)
	}

	var purchase purchaseResult
	raw, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &purchase); err != nil {
		t.Fatalf("decode purchase result: %v", err)
	}
	if purchase.TokensMinted != "1000" {
		t.Fatalf("unexpected token count: %s", purchase.TokensMinted)
	}
	if purchase.Sold != "1000" {
		t.Fatalf("unexpected sold total: %s", purchase.Sold)
	}

	_, resp = rpcCall(t, server, "sale_state", nil, "")
	if resp.Error != nil {
		t.Fatalf("state query failed: %+v", resp.Error)
	}
	var saleState saleStateResult
	raw, _ = json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &saleState); err != nil {
		t.Fatalf("decode state result: %v", err)
	}
	if saleState.Sold != "1000" {
		t.Fatalf("state sold mismatch: %s", saleState.Sold)
	}

	_, resp = rpcCall(t, server, "vesting_participant", map[string]any{"owner": buyerHex}, "")
	if resp.Error != nil {
		t.Fatalf("participant query failed: %+v", resp.Error)
	}
	var participant participantResult
	raw, _ = json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &participant); err != nil {
		t.Fatalf("decode participant result: %v", err)
	}
	if participant.PurchasedAmount != "1000" {
		t.Fatalf("participant principal mismatch: %s", participant.PurchasedAmount)
	}

	_, resp = rpcCall(t, server, "dist_total", map[string]any{"owner": buyerHex}, "")
	if resp.Error != nil {
		t.Fatalf("distribution total failed: %+v", resp.Error)
	}
	total := resp.Result.(map[string]any)["total"]
	if total != "1000" {
		t.Fatalf("distribution total mismatch: %v", total)
	}
}

func TestBusinessErrorsMapToInvalidParams(t *testing.T) {
	server := newTestServer(t, 500)
	initializeSale(t, server)

	// Purchase before the sale start resolves no phase.
	recorder, resp := rpcCall(t, server, "sale_purchase", map[string]any{
		"buyer":      buyerHex,
		"amountPaid": "100",
	}, "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid-params mapping, got %+v", resp.Error)
	}
}

func TestInvalidAddressRejected(t *testing.T) {
	server := newTestServer(t, 1_500)
	initializeSale(t, server)

	_, resp := rpcCall(t, server, "sale_purchase", map[string]any{
		"buyer":      "0x1234",
		"amountPaid": "100",
	}, "")
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected address rejection, got %+v", resp.Error)
	}
}

func TestTreasuryFlowOverRPC(t *testing.T) {
	server := newTestServer(t, 1_500)
	if _, err := server.treasury.Initialize(testAddr(0xAD)); err != nil {
		t.Fatalf("treasury initialization failed: %v", err)
	}
	if err := server.sale.MintInitialSupply(testAddr(0xAD), testAddr(0xDD)); err != nil {
		t.Fatalf("supply mint failed: %v", err)
	}

	beneficiaryHex := "0x0000000000000000000000000000000000000002"
	recorder, resp := rpcCall(t, server, "treasury_addBeneficiary", map[string]any{
		"caller":      adminHex,
		"beneficiary": beneficiaryHex,
		"amount":      "750",
	}, testToken)
	if recorder.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("add beneficiary failed: %d %+v", recorder.Code, resp.Error)
	}

	_, resp = rpcCall(t, server, "treasury_list", nil, "")
	if resp.Error != nil {
		t.Fatalf("treasury list failed: %+v", resp.Error)
	}
	var entries []beneficiaryResult
	raw, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(entries) != 1 || entries[0].Amount != "750" {
		t.Fatalf("unexpected registry: %+v", entries)
	}

	_, resp = rpcCall(t, server, "treasury_claim", map[string]any{"beneficiary": beneficiaryHex}, "")
	if resp.Error != nil {
		t.Fatalf("treasury claim failed: %+v", resp.Error)
	}
	amount := resp.Result.(map[string]any)["amount"]
	if amount != "750" {
		t.Fatalf("unexpected claim amount: %v", amount)
	}

	_, resp = rpcCall(t, server, "treasury_list", nil, "")
	if resp.Error != nil {
		t.Fatalf("treasury list failed: %+v", resp.Error)
	}
	raw, _ = json.Marshal(resp.Result)
	entries = nil
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("promise not closed: %+v", entries)
	}
}

func TestRateLimiterRejectsBursts(t *testing.T) {
	server := newTestServer(t, 1_500)
	rejected := false
	for i := 0; i < 200; i++ {
		recorder, _ := rpcCall(t, server, "sale_state", nil, "")
		if recorder.Code == http.StatusTooManyRequests {
			rejected = true
			break
		}
	}
	if !rejected {
		t.Fatalf("burst of 200 requests was never rate limited")
	}
}

func TestParamsMustBeSingleObject(t *testing.T) {
	server := newTestServer(t, 1_500)
	body := []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"vesting_participant","params":[{"owner":%q},{"owner":%q}]}`, buyerHex, buyerHex))
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	recorder := httptest.NewRecorder()
	server.handle(recorder, req)

	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", resp.Error)
	}
}
