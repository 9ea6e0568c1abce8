package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketchain/core/state"
	"marketchain/core/types"
	"marketchain/native/bank"
	"marketchain/native/market"
	"marketchain/storage"
)

func newTestServer(t *testing.T) (*Server, *bank.Ledger) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := market.NewEngine()
	engine.SetState(manager)
	ledger := bank.NewLedger()
	engine.SetSettler(ledger)
	engine.SetBalanceSource(ledger)
	if err := engine.BootstrapFees([]string{"Montreal", "Toronto"}, "LUNA", big.NewInt(5), big.NewInt(20)); err != nil {
		t.Fatalf("bootstrap fees: %v", err)
	}
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewServer(engine, ledger, log), ledger
}

type testResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func call(t *testing.T, s *Server, method string, params interface{}) (*testResponse, int) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []interface{}{},
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	resp := &testResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return resp, rec.Code
}

func mustResult(t *testing.T, resp *testResponse, out interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		t.Fatalf("decode result %q: %v", string(resp.Result), err)
	}
}

func mustErrorCode(t *testing.T, resp *testResponse, want int) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected error code %d, got result %q", want, string(resp.Result))
	}
	if resp.Error.Code != want {
		t.Fatalf("error code = %d (%s), want %d", resp.Error.Code, resp.Error.Message, want)
	}
}

func coin(amount int64) rpcCoin {
	return rpcCoin{Denom: "LUNA", Amount: big.NewInt(amount).String()}
}

func TestServeHTTPRejectsNonPost(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	var resp testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	mustErrorCode(t, &resp, codeInvalidRequest)
}

func TestServeHTTPRejectsMalformedJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json"))))
	var resp testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	mustErrorCode(t, &resp, codeParseError)
}

func TestDispatchUnknownMethod(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, status := call(t, srv, "market_noSuchMethod", nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", status, http.StatusNotFound)
	}
	mustErrorCode(t, resp, codeMethodNotFound)
}

func TestFullFlowOverRPC(t *testing.T) {
	srv, ledger := newTestServer(t)
	ledger.Mint("buyer1", coin(500).mustCoin(t))
	ledger.Mint("shipper1", coin(300).mustCoin(t))

	resp, _ := call(t, srv, "market_post", marketPostParams{
		Caller: "seller1", Name: "laptop", Price: coin(200), Area: "Montreal",
	})
	var posted market.ExecResult
	mustResult(t, resp, &posted)
	if posted.Goods == nil || posted.Goods.Status != market.GoodsAvailable {
		t.Fatalf("unexpected post result %+v", posted.Goods)
	}

	resp, _ = call(t, srv, "market_buy", marketBuyParams{
		Caller: "buyer1", Funds: []rpcCoin{coin(200)}, Name: "laptop", Area: "Toronto",
	})
	var bought market.ExecResult
	mustResult(t, resp, &bought)
	if bought.Order == nil || bought.Order.ID != 0 || bought.Order.Status != market.OrderSetup {
		t.Fatalf("unexpected buy result %+v", bought.Order)
	}
	if got := ledger.Balance("buyer1", "LUNA"); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("buyer balance after deposit = %s, want 300", got)
	}
	if got := ledger.Balance(bank.ModuleAccount, "LUNA"); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("custody after buy = %s, want 200", got)
	}

	// Bid without an explicit price adopts the schedule quote for the route.
	resp, _ = call(t, srv, "market_takeOrder", marketTakeOrderParams{
		Caller: "shipper1", Funds: []rpcCoin{coin(200)}, ID: 0, PubKey: "shipper-pubkey",
	})
	var taken market.ExecResult
	mustResult(t, resp, &taken)
	if taken.Order.Status != market.OrderBidding || len(taken.Order.Bids) != 1 {
		t.Fatalf("unexpected takeOrder result %+v", taken.Order)
	}
	if got := taken.Order.Bids[0].Price.Amount; got.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("quoted bid price = %s, want 20", got)
	}

	resp, _ = call(t, srv, "market_chooseBid", marketChooseBidParams{
		Caller: "buyer1", ID: 0, Shipper: "shipper1",
	})
	var chosen market.ExecResult
	mustResult(t, resp, &chosen)
	if chosen.Order.Status != market.OrderWaitingAddressUpload || chosen.Order.Shipper != "shipper1" {
		t.Fatalf("unexpected chooseBid result %+v", chosen.Order)
	}

	for _, upload := range []marketUploadAddressParams{
		{Caller: "buyer1", ID: 0, AddressEnc: "enc:buyer-blob"},
		{Caller: "seller1", ID: 0, AddressEnc: "enc:seller-blob"},
	} {
		resp, _ = call(t, srv, "market_uploadAddress", upload)
		var uploaded market.ExecResult
		mustResult(t, resp, &uploaded)
	}

	resp, _ = call(t, srv, "market_getAddresses", marketIDParams{ID: 0})
	var addrs market.AddressesResponse
	mustResult(t, resp, &addrs)
	if addrs.Buyer != "enc:buyer-blob" || addrs.Seller != "enc:seller-blob" {
		t.Fatalf("unexpected addresses %+v", addrs)
	}

	resp, _ = call(t, srv, "market_confirm", marketOrderParams{Caller: "buyer1", ID: 0})
	var confirmed market.ExecResult
	mustResult(t, resp, &confirmed)
	if confirmed.Order.Status != market.OrderConfirmed {
		t.Fatalf("order status = %v, want confirmed", confirmed.Order.Status)
	}

	if got := ledger.Balance("seller1", "LUNA"); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("seller payout = %s, want 200", got)
	}
	if got := ledger.Balance("shipper1", "LUNA"); got.Cmp(big.NewInt(120)) != 0 {
		t.Fatalf("shipper balance = %s, want 120", got)
	}
	if got := ledger.Balance(bank.ModuleAccount, "LUNA"); got.Cmp(big.NewInt(180)) != 0 {
		t.Fatalf("custody after settlement = %s, want 180", got)
	}

	resp, _ = call(t, srv, "market_getGoods", nil)
	var goods market.GoodsResponse
	mustResult(t, resp, &goods)
	if len(goods.Goods) != 1 || goods.Goods[0].Status != market.GoodsSold {
		t.Fatalf("unexpected goods listing %+v", goods.Goods)
	}

	resp, _ = call(t, srv, "market_getBalance", nil)
	var balances market.BalanceResponse
	mustResult(t, resp, &balances)
	if len(balances.Balances) != 1 || balances.Balances[0].Amount.Cmp(big.NewInt(180)) != 0 {
		t.Fatalf("unexpected custody report %+v", balances.Balances)
	}
}

func TestRejectionRefundsDeposit(t *testing.T) {
	srv, ledger := newTestServer(t)
	ledger.Mint("buyer1", coin(500).mustCoin(t))
	resp, _ := call(t, srv, "market_post", marketPostParams{
		Caller: "seller1", Name: "laptop", Price: coin(200), Area: "Montreal",
	})
	var posted market.ExecResult
	mustResult(t, resp, &posted)

	// Attached funds below the listed price: deposited, then returned in full.
	resp, status := call(t, srv, "market_buy", marketBuyParams{
		Caller: "buyer1", Funds: []rpcCoin{coin(100)}, Name: "laptop", Area: "Toronto",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", status, http.StatusBadRequest)
	}
	mustErrorCode(t, resp, codeMarketInvalidParams)
	if got := ledger.Balance("buyer1", "LUNA"); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("buyer balance after refund = %s, want 500", got)
	}
	if got := ledger.Balance(bank.ModuleAccount, "LUNA"); got.Sign() != 0 {
		t.Fatalf("custody after refund = %s, want 0", got)
	}
}

func TestDepositFailsWhenCallerCannotCover(t *testing.T) {
	srv, ledger := newTestServer(t)
	resp, _ := call(t, srv, "market_post", marketPostParams{
		Caller: "seller1", Name: "laptop", Price: coin(200), Area: "Montreal",
	})
	var posted market.ExecResult
	mustResult(t, resp, &posted)

	resp, status := call(t, srv, "market_buy", marketBuyParams{
		Caller: "buyer1", Funds: []rpcCoin{coin(200)}, Name: "laptop", Area: "Toronto",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", status, http.StatusBadRequest)
	}
	mustErrorCode(t, resp, codeMarketInvalidParams)
	if got := ledger.Balance(bank.ModuleAccount, "LUNA"); got.Sign() != 0 {
		t.Fatalf("custody = %s, want 0", got)
	}
}

func TestMarketErrorCodeMapping(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := call(t, srv, "market_post", marketPostParams{
		Caller: "seller1", Name: "laptop", Price: coin(200), Area: "Montreal",
	})
	var posted market.ExecResult
	mustResult(t, resp, &posted)

	resp, status := call(t, srv, "market_post", marketPostParams{
		Caller: "seller2", Name: "laptop", Price: coin(150), Area: "Toronto",
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate post status = %d, want %d", status, http.StatusConflict)
	}
	mustErrorCode(t, resp, codeMarketConflict)

	resp, status = call(t, srv, "market_reset", marketResetParams{
		Caller: "stranger", Name: "laptop", Price: coin(150),
	})
	if status != http.StatusForbidden {
		t.Fatalf("foreign reset status = %d, want %d", status, http.StatusForbidden)
	}
	mustErrorCode(t, resp, codeMarketForbidden)

	resp, status = call(t, srv, "market_getOrderDetail", marketIDParams{ID: 99})
	if status != http.StatusNotFound {
		t.Fatalf("unknown order status = %d, want %d", status, http.StatusNotFound)
	}
	mustErrorCode(t, resp, codeMarketNotFound)

	resp, status = call(t, srv, "market_reset", marketResetParams{
		Caller: "seller1", Name: "laptop", Price: coin(0),
	})
	if status != http.StatusBadRequest {
		t.Fatalf("zero-price reset status = %d, want %d", status, http.StatusBadRequest)
	}
	mustErrorCode(t, resp, codeMarketInvalidParams)
}

func TestInvalidParamsRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := call(t, srv, "market_post", marketPostParams{
		Caller: "seller1", Name: "laptop", Price: rpcCoin{Denom: "LUNA", Amount: "not-a-number"}, Area: "Montreal",
	})
	mustErrorCode(t, resp, codeMarketInvalidParams)

	resp, _ = call(t, srv, "market_post", nil)
	mustErrorCode(t, resp, codeMarketInvalidParams)

	resp, _ = call(t, srv, "market_confirm", marketOrderParams{Caller: "  ", ID: 0})
	mustErrorCode(t, resp, codeMarketInvalidParams)
}

func TestShippingFeeScheduleQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := call(t, srv, "market_getShippingFees", nil)
	var schedule market.ShippingFeesResponse
	mustResult(t, resp, &schedule)
	if len(schedule.Routes) != 4 {
		t.Fatalf("route count = %d, want 4", len(schedule.Routes))
	}
	for _, route := range schedule.Routes {
		want := big.NewInt(20)
		if route.Origin == route.Destination {
			want = big.NewInt(5)
		}
		if route.Fee.Amount.Cmp(want) != 0 {
			t.Fatalf("fee %s -> %s = %s, want %s", route.Origin, route.Destination, route.Fee.Amount, want)
		}
	}
}

func (c rpcCoin) mustCoin(t *testing.T) types.Coin {
	t.Helper()
	converted, err := c.toCoin()
	if err != nil {
		t.Fatalf("coin: %v", err)
	}
	return converted
}
