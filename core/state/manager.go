package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"marketchain/core/types"
	"marketchain/native/market"
	"marketchain/storage"
)

// Manager provides the persistent ledger backing the market engine: goods
// catalog, order table, shipping fee schedule and the order id counter. Keys
// are plain prefixed byte strings so range listings come back in key order;
// order ids are big-endian encoded so key order equals id order.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	goodsPrefix = []byte("market/goods/")
	orderPrefix = []byte("market/order/")
	feePrefix   = []byte("market/fee/")
	orderSeqKey = []byte("market/order-seq")
)

const feeRouteSeparator = "|"

func goodsKey(name string) []byte {
	return append(append([]byte(nil), goodsPrefix...), name...)
}

func orderKey(id uint64) []byte {
	buf := make([]byte, len(orderPrefix)+8)
	copy(buf, orderPrefix)
	binary.BigEndian.PutUint64(buf[len(orderPrefix):], id)
	return buf
}

func feeKey(origin, destination string) []byte {
	route := origin + feeRouteSeparator + destination
	return append(append([]byte(nil), feePrefix...), route...)
}

// GoodsPut sanitises and persists a goods record under its name.
func (m *Manager) GoodsPut(goods *market.Goods) error {
	sanitized, err := market.SanitizeGoods(goods)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return err
	}
	return m.db.Put(goodsKey(sanitized.Name), encoded)
}

// GoodsGet loads one goods record by name.
func (m *Manager) GoodsGet(name string) (*market.Goods, bool, error) {
	data, err := m.db.Get(goodsKey(name))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	goods := new(market.Goods)
	if err := rlp.DecodeBytes(data, goods); err != nil {
		return nil, false, err
	}
	return goods, true, nil
}

// GoodsList returns every catalog record in name order.
func (m *Manager) GoodsList() ([]*market.Goods, error) {
	it := m.db.NewIterator(goodsPrefix)
	defer it.Release()
	list := []*market.Goods{}
	for it.Next() {
		goods := new(market.Goods)
		if err := rlp.DecodeBytes(it.Value(), goods); err != nil {
			return nil, err
		}
		list = append(list, goods)
	}
	return list, it.Error()
}

// OrderPut sanitises and persists an order under its id.
func (m *Manager) OrderPut(order *market.Order) error {
	sanitized, err := market.SanitizeOrder(order)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return err
	}
	return m.db.Put(orderKey(sanitized.ID), encoded)
}

// OrderGet loads one order by id.
func (m *Manager) OrderGet(id uint64) (*market.Order, bool, error) {
	data, err := m.db.Get(orderKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	order := new(market.Order)
	if err := rlp.DecodeBytes(data, order); err != nil {
		return nil, false, err
	}
	return order, true, nil
}

// OrderList returns every order in ascending id order.
func (m *Manager) OrderList() ([]*market.Order, error) {
	it := m.db.NewIterator(orderPrefix)
	defer it.Release()
	list := []*market.Order{}
	for it.Next() {
		order := new(market.Order)
		if err := rlp.DecodeBytes(it.Value(), order); err != nil {
			return nil, err
		}
		list = append(list, order)
	}
	return list, it.Error()
}

// NextOrderID allocates the next order id from the monotonic counter. The
// first allocation returns 0.
func (m *Manager) NextOrderID() (uint64, error) {
	var next uint64
	data, err := m.db.Get(orderSeqKey)
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
		next = 0
	case err != nil:
		return 0, err
	case len(data) != 8:
		return 0, fmt.Errorf("state: corrupt order counter (%d bytes)", len(data))
	default:
		next = binary.BigEndian.Uint64(data)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next+1)
	if err := m.db.Put(orderSeqKey, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// ShippingFeePut stores the fee for one ordered area pair.
func (m *Manager) ShippingFeePut(origin, destination string, fee types.Coin) error {
	if strings.Contains(origin, feeRouteSeparator) || strings.Contains(destination, feeRouteSeparator) {
		return fmt.Errorf("state: area must not contain %q", feeRouteSeparator)
	}
	encoded, err := rlp.EncodeToBytes(fee.Clone())
	if err != nil {
		return err
	}
	return m.db.Put(feeKey(origin, destination), encoded)
}

// ShippingFeeGet looks up the fee for one ordered area pair.
func (m *Manager) ShippingFeeGet(origin, destination string) (types.Coin, bool, error) {
	data, err := m.db.Get(feeKey(origin, destination))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return types.Coin{}, false, nil
	}
	if err != nil {
		return types.Coin{}, false, err
	}
	var fee types.Coin
	if err := rlp.DecodeBytes(data, &fee); err != nil {
		return types.Coin{}, false, err
	}
	return fee, true, nil
}

// ShippingFeeList returns the whole schedule in route-key order.
func (m *Manager) ShippingFeeList() ([]market.FeeRoute, error) {
	it := m.db.NewIterator(feePrefix)
	defer it.Release()
	routes := []market.FeeRoute{}
	for it.Next() {
		suffix := string(it.Key()[len(feePrefix):])
		origin, destination, ok := strings.Cut(suffix, feeRouteSeparator)
		if !ok {
			return nil, fmt.Errorf("state: corrupt fee route key %q", suffix)
		}
		var fee types.Coin
		if err := rlp.DecodeBytes(it.Value(), &fee); err != nil {
			return nil, err
		}
		routes = append(routes, market.FeeRoute{Origin: origin, Destination: destination, Fee: fee})
	}
	return routes, it.Error()
}
