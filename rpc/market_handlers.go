package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"marketchain/core/types"
	"marketchain/native/market"
	"marketchain/observability"
)

const (
	codeMarketInvalidParams = -32021
	codeMarketNotFound      = -32022
	codeMarketForbidden     = -32023
	codeMarketConflict      = -32024
	codeMarketInternal      = -32025
)

type rpcCoin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

func (c rpcCoin) toCoin() (types.Coin, error) {
	denom := strings.TrimSpace(c.Denom)
	if denom == "" {
		return types.Coin{}, fmt.Errorf("coin denom must not be empty")
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(c.Amount), 10)
	if !ok {
		return types.Coin{}, fmt.Errorf("invalid coin amount %q", c.Amount)
	}
	if amount.Sign() < 0 {
		return types.Coin{}, fmt.Errorf("coin amount must not be negative")
	}
	return types.NewCoin(denom, amount), nil
}

func toCoins(coins []rpcCoin) ([]types.Coin, error) {
	out := make([]types.Coin, 0, len(coins))
	for _, c := range coins {
		coin, err := c.toCoin()
		if err != nil {
			return nil, err
		}
		out = append(out, coin)
	}
	return out, nil
}

type marketPostParams struct {
	Caller string  `json:"caller"`
	Name   string  `json:"name"`
	Price  rpcCoin `json:"price"`
	Area   string  `json:"area"`
}

type marketBuyParams struct {
	Caller string    `json:"caller"`
	Funds  []rpcCoin `json:"funds"`
	Name   string    `json:"name"`
	Area   string    `json:"area"`
}

type marketResetParams struct {
	Caller string  `json:"caller"`
	Name   string  `json:"name"`
	Price  rpcCoin `json:"price"`
}

type marketTakeOrderParams struct {
	Caller string    `json:"caller"`
	Funds  []rpcCoin `json:"funds"`
	ID     uint64    `json:"id"`
	PubKey string    `json:"pubKey"`
	Price  *rpcCoin  `json:"price,omitempty"`
}

type marketChooseBidParams struct {
	Caller  string `json:"caller"`
	ID      uint64 `json:"id"`
	Shipper string `json:"shipper"`
}

type marketUploadAddressParams struct {
	Caller     string `json:"caller"`
	ID         uint64 `json:"id"`
	AddressEnc string `json:"addressEnc"`
}

type marketOrderParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
}

type marketIDParams struct {
	ID uint64 `json:"id"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func writeMarketError(w http.ResponseWriter, req *RPCRequest, err error) {
	var (
		status = http.StatusInternalServerError
		code   = codeMarketInternal
	)
	switch {
	case errors.Is(err, market.ErrNotFound),
		errors.Is(err, market.ErrShipperNotFound),
		errors.Is(err, market.ErrNoRoute):
		status, code = http.StatusNotFound, codeMarketNotFound
	case errors.Is(err, market.ErrUnauthorized):
		status, code = http.StatusForbidden, codeMarketForbidden
	case errors.Is(err, market.ErrGoodsNotAvailable),
		errors.Is(err, market.ErrOrderNotAvailable),
		errors.Is(err, market.ErrDuplicateListing):
		status, code = http.StatusConflict, codeMarketConflict
	case errors.Is(err, market.ErrInsufficientFunds),
		errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrDenomMismatch):
		status, code = http.StatusBadRequest, codeMarketInvalidParams
	}
	observability.MarketMetrics().ObserveError(req.Method, strconv.Itoa(code))
	writeError(w, status, req.ID, code, err.Error(), nil)
}

// execute runs one action under the serialization lock, moving the attached
// deposit into custody first and returning it if the action is rejected.
func (s *Server) execute(w http.ResponseWriter, req *RPCRequest, caller string, funds []types.Coin, msg market.Msg) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", "caller must not be empty")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(funds) > 0 && s.ledger != nil {
		if err := s.ledger.Deposit(caller, funds); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	result, err := s.engine.Execute(caller, funds, msg)
	if err != nil {
		if len(funds) > 0 && s.ledger != nil {
			s.ledger.Refund(caller, funds)
		}
		s.log.Warn("action rejected",
			slog.String("method", req.Method),
			slog.String("caller", caller),
			slog.Any("error", err))
		writeMarketError(w, req, err)
		return
	}
	s.log.Info("action applied", slog.String("method", req.Method), slog.String("caller", caller))
	writeResult(w, req.ID, result)
}

func (s *Server) handleMarketPost(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketPostParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := params.Price.toCoin()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.execute(w, req, params.Caller, nil, market.PostMsg{Name: params.Name, Price: price, Area: params.Area})
}

func (s *Server) handleMarketBuy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketBuyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	funds, err := toCoins(params.Funds)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.execute(w, req, params.Caller, funds, market.BuyMsg{Name: params.Name, Area: params.Area})
}

func (s *Server) handleMarketReset(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketResetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := params.Price.toCoin()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.execute(w, req, params.Caller, nil, market.ResetMsg{Name: params.Name, Price: price})
}

func (s *Server) handleMarketTakeOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketTakeOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	funds, err := toCoins(params.Funds)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	var bidPrice types.Coin
	if params.Price != nil {
		bidPrice, err = params.Price.toCoin()
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	s.execute(w, req, params.Caller, funds, market.TakeOrderMsg{ID: params.ID, PubKey: params.PubKey, Price: bidPrice})
}

func (s *Server) handleMarketChooseBid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketChooseBidParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.execute(w, req, params.Caller, nil, market.ChooseBidMsg{ID: params.ID, Shipper: params.Shipper})
}

func (s *Server) handleMarketUploadAddress(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketUploadAddressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.execute(w, req, params.Caller, nil, market.UploadAddressMsg{ID: params.ID, AddressEnc: params.AddressEnc})
}

func (s *Server) handleMarketConfirm(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.execute(w, req, params.Caller, nil, market.ConfirmMsg{ID: params.ID})
}

func (s *Server) handleMarketDisputeBroken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.execute(w, req, params.Caller, nil, market.DisputeBrokenMsg{ID: params.ID})
}

func (s *Server) handleMarketDisputeUnsatisfied(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.execute(w, req, params.Caller, nil, market.DisputeUnsatisfiedMsg{ID: params.ID})
}

func (s *Server) handleMarketDisputeConfirm(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketOrderParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.execute(w, req, params.Caller, nil, market.DisputeConfirmMsg{ID: params.ID})
}

func (s *Server) handleMarketQuery(w http.ResponseWriter, req *RPCRequest, query market.Query) {
	s.mu.Lock()
	result, err := s.engine.Resolve(query)
	s.mu.Unlock()
	if err != nil {
		writeMarketError(w, req, err)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleMarketOrderDetail(w http.ResponseWriter, req *RPCRequest) {
	var params marketIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.handleMarketQuery(w, req, market.OrderDetailQuery{ID: params.ID})
}

func (s *Server) handleMarketAddresses(w http.ResponseWriter, req *RPCRequest) {
	var params marketIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	s.handleMarketQuery(w, req, market.AddressesQuery{ID: params.ID})
}
