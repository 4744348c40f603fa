package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"tokenmarket/core/model"
)

// ValueMover moves fungible value between accounts. An operator moving value
// out of an account other than its own must hold a sufficient allowance
// granted by that account.
type ValueMover interface {
	MoveValue(operator, from, to common.Address, amount *uint256.Int) error
	BalanceOf(account common.Address) *uint256.Int
}

// AssetMover moves non-fungible asset ownership between accounts.
type AssetMover interface {
	MoveAsset(operator, from, to common.Address, assetID uint64) error
	OwnerOf(assetID uint64) (common.Address, error)
}

// Marketplace is the escrow order book. It owns sell-order state per asset id
// and buy-order state per order id, and holds escrowed assets and value under
// its own address. Every operation serializes under one mutex and either
// applies completely or not at all.
type Marketplace struct {
	mu     sync.Mutex
	addr   common.Address
	value  ValueMover
	assets AssetMover
	sink   EventSink

	sellOrders  map[uint64]*model.SellOrder
	buyOrders   map[uint64]*model.BuyOrder
	nextOrderID uint64
}

func NewMarketplace(addr common.Address, value ValueMover, assets AssetMover, sink EventSink) *Marketplace {
	return &Marketplace{
		addr:       addr,
		value:      value,
		assets:     assets,
		sink:       sink,
		sellOrders: make(map[uint64]*model.SellOrder),
		buyOrders:  make(map[uint64]*model.BuyOrder),
	}
}

// Address is the custody account holding escrowed assets and value.
func (m *Marketplace) Address() common.Address { return m.addr }

// PostSellOrder lists assetID for price. The caller must own the asset at
// call time, and no live sell order may exist for it; replacing a live order
// requires an explicit cancel first.
func (m *Marketplace) PostSellOrder(caller common.Address, assetID uint64, price *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if price == nil || price.IsZero() {
		return fmt.Errorf("%w: sell order needs a nonzero price", ErrInvalidArgument)
	}
	owner, err := m.assets.OwnerOf(assetID)
	if err != nil {
		return fmt.Errorf("%w: asset %d: %v", ErrInvalidArgument, assetID, err)
	}
	if owner != caller {
		logrus.Warnf("sell post rejected: %s does not own asset %d", caller.Hex(), assetID)
		return fmt.Errorf("%w: caller does not own asset %d", ErrUnauthorized, assetID)
	}
	if _, exists := m.sellOrders[assetID]; exists {
		return fmt.Errorf("%w: live sell order exists for asset %d", ErrInvalidState, assetID)
	}
	if err := m.assets.MoveAsset(m.addr, caller, m.addr, assetID); err != nil {
		return fmt.Errorf("escrow asset %d: %w", assetID, err)
	}
	m.sellOrders[assetID] = &model.SellOrder{
		AssetID: assetID,
		Seller:  caller,
		Price:   new(uint256.Int).Set(price),
	}

	logrus.Infof("sell order posted: asset %d by %s at %s", assetID, caller.Hex(), price)
	m.emit(Event{Op: "sell_post", Actor: caller, AssetID: assetID, Amount: new(uint256.Int).Set(price)})
	return nil
}

// BuySellOrder fills the live sell order for assetID: price moves from the
// caller to the seller, the asset moves from custody to the caller, and the
// order is cleared, as one transition.
func (m *Marketplace) BuySellOrder(caller common.Address, assetID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.sellOrders[assetID]
	if !ok {
		return fmt.Errorf("%w: no live sell order for asset %d", ErrInvalidState, assetID)
	}
	if err := m.value.MoveValue(m.addr, caller, order.Seller, order.Price); err != nil {
		return fmt.Errorf("pay seller: %w", err)
	}
	if err := m.assets.MoveAsset(m.addr, m.addr, caller, assetID); err != nil {
		// hand the payment back so a failed fill leaves no partial effect
		if rerr := m.value.MoveValue(m.addr, order.Seller, caller, order.Price); rerr != nil {
			logrus.Errorf("unwind payment for asset %d: %v", assetID, rerr)
		}
		return fmt.Errorf("release asset %d: %w", assetID, err)
	}
	delete(m.sellOrders, assetID)

	logrus.Infof("sell order filled: asset %d to %s for %s", assetID, caller.Hex(), order.Price)
	m.emit(Event{Op: "sell_fill", Actor: caller, Counterparty: order.Seller, AssetID: assetID, Amount: new(uint256.Int).Set(order.Price)})
	return nil
}

// CancelSellOrder returns the escrowed asset to the recorded seller and
// clears the order in the same transition. Only the recorded seller of the
// current order may cancel.
func (m *Marketplace) CancelSellOrder(caller common.Address, assetID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.sellOrders[assetID]
	if !ok {
		return fmt.Errorf("%w: no live sell order for asset %d", ErrInvalidState, assetID)
	}
	if order.Seller != caller {
		logrus.Warnf("sell cancel rejected: %s is not the seller of asset %d", caller.Hex(), assetID)
		return fmt.Errorf("%w: caller is not the recorded seller of asset %d", ErrUnauthorized, assetID)
	}
	if err := m.assets.MoveAsset(m.addr, m.addr, order.Seller, assetID); err != nil {
		return fmt.Errorf("return asset %d: %w", assetID, err)
	}
	delete(m.sellOrders, assetID)

	logrus.Infof("sell order canceled: asset %d returned to %s", assetID, order.Seller.Hex())
	m.emit(Event{Op: "sell_cancel", Actor: caller, AssetID: assetID})
	return nil
}

// ViewCurrentSellOrder returns a snapshot of the live sell order for assetID.
func (m *Marketplace) ViewCurrentSellOrder(assetID uint64) (model.SellOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.sellOrders[assetID]
	if !ok {
		return model.SellOrder{}, false
	}
	return model.SellOrder{
		AssetID: order.AssetID,
		Seller:  order.Seller,
		Price:   new(uint256.Int).Set(order.Price),
	}, true
}

// PostBuyOrder escrows amount from the caller against assetID and returns the
// fresh order id. Several live buy orders may target the same asset.
func (m *Marketplace) PostBuyOrder(caller common.Address, assetID uint64, amount *uint256.Int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount == nil || amount.IsZero() {
		return 0, fmt.Errorf("%w: buy order needs a nonzero escrow", ErrInvalidArgument)
	}
	if err := m.value.MoveValue(m.addr, caller, m.addr, amount); err != nil {
		return 0, fmt.Errorf("escrow value: %w", err)
	}
	m.nextOrderID++
	id := m.nextOrderID
	m.buyOrders[id] = &model.BuyOrder{
		ID:       id,
		Buyer:    caller,
		AssetID:  assetID,
		Escrowed: new(uint256.Int).Set(amount),
		Status:   model.OrderLive,
	}

	logrus.Infof("buy order %d posted: asset %d by %s escrowing %s", id, assetID, caller.Hex(), amount)
	m.emit(Event{Op: "buy_post", Actor: caller, AssetID: assetID, OrderID: id, Amount: new(uint256.Int).Set(amount)})
	return id, nil
}

// CancelBuyOrder refunds the full remaining escrow to the buyer and marks the
// order canceled, terminally. A canceled order cannot be canceled, decreased
// or fulfilled again.
func (m *Marketplace) CancelBuyOrder(caller common.Address, orderID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, err := m.liveBuyOrder(orderID)
	if err != nil {
		return err
	}
	if order.Buyer != caller {
		return fmt.Errorf("%w: caller is not the buyer of order %d", ErrUnauthorized, orderID)
	}
	refund := new(uint256.Int).Set(order.Escrowed)
	if err := m.value.MoveValue(m.addr, m.addr, caller, refund); err != nil {
		return fmt.Errorf("refund order %d: %w", orderID, err)
	}
	order.Status = model.OrderCanceled
	order.Escrowed.Clear()

	logrus.Infof("buy order %d canceled: %s refunded to %s", orderID, refund, caller.Hex())
	m.emit(Event{Op: "buy_cancel", Actor: caller, AssetID: order.AssetID, OrderID: orderID, Amount: refund})
	return nil
}

// DecreaseBuyOrder refunds amount from a live order's escrow. The amount is
// bounded by the order's current escrow, strictly, so the order always keeps
// a positive residual while live.
func (m *Marketplace) DecreaseBuyOrder(caller common.Address, orderID uint64, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, err := m.liveBuyOrder(orderID)
	if err != nil {
		return err
	}
	if order.Buyer != caller {
		return fmt.Errorf("%w: caller is not the buyer of order %d", ErrUnauthorized, orderID)
	}
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: decrease needs a nonzero amount", ErrInvalidArgument)
	}
	if amount.Cmp(order.Escrowed) >= 0 {
		return fmt.Errorf("%w: decrease %s must stay below current escrow %s", ErrInvalidArgument, amount, order.Escrowed)
	}
	if err := m.value.MoveValue(m.addr, m.addr, caller, amount); err != nil {
		return fmt.Errorf("refund order %d: %w", orderID, err)
	}
	order.Escrowed.Sub(order.Escrowed, amount)

	logrus.Infof("buy order %d decreased by %s, %s remains escrowed", orderID, amount, order.Escrowed)
	m.emit(Event{Op: "buy_decrease", Actor: caller, AssetID: order.AssetID, OrderID: orderID, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// AcceptBuyOrder is the seller-side fill: the caller must own the order's
// asset at call time. The asset moves to the buyer, the escrowed value to the
// caller, and the order becomes fulfilled, terminally.
func (m *Marketplace) AcceptBuyOrder(caller common.Address, orderID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, err := m.liveBuyOrder(orderID)
	if err != nil {
		return err
	}
	owner, err := m.assets.OwnerOf(order.AssetID)
	if err != nil {
		return fmt.Errorf("%w: asset %d: %v", ErrInvalidArgument, order.AssetID, err)
	}
	if owner != caller {
		return fmt.Errorf("%w: caller does not own asset %d", ErrUnauthorized, order.AssetID)
	}
	if err := m.assets.MoveAsset(m.addr, caller, order.Buyer, order.AssetID); err != nil {
		return fmt.Errorf("deliver asset %d: %w", order.AssetID, err)
	}
	payout := new(uint256.Int).Set(order.Escrowed)
	if err := m.value.MoveValue(m.addr, m.addr, caller, payout); err != nil {
		if rerr := m.assets.MoveAsset(m.addr, order.Buyer, caller, order.AssetID); rerr != nil {
			logrus.Errorf("unwind delivery of asset %d: %v", order.AssetID, rerr)
		}
		return fmt.Errorf("pay out order %d: %w", orderID, err)
	}
	order.Status = model.OrderFulfilled
	order.Escrowed.Clear()

	logrus.Infof("buy order %d fulfilled: asset %d to %s, %s to %s", orderID, order.AssetID, order.Buyer.Hex(), payout, caller.Hex())
	m.emit(Event{Op: "buy_fill", Actor: caller, Counterparty: order.Buyer, AssetID: order.AssetID, OrderID: orderID, Amount: payout})
	return nil
}

// liveBuyOrder resolves orderID and enforces liveness from the explicit
// status tag, never from a side value like the escrow balance.
func (m *Marketplace) liveBuyOrder(orderID uint64) (*model.BuyOrder, error) {
	order, ok := m.buyOrders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown buy order %d", ErrInvalidState, orderID)
	}
	if order.Status != model.OrderLive {
		return nil, fmt.Errorf("%w: buy order %d is %s", ErrInvalidState, orderID, order.Status)
	}
	return order, nil
}

func (m *Marketplace) emit(ev Event) {
	if m.sink == nil {
		return
	}
	ev.Time = time.Now().Unix()
	if err := m.sink.Record(ev); err != nil {
		logrus.Warnf("record %s event: %v", ev.Op, err)
	}
}
