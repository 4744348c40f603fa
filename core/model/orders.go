package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type OrderStatus byte

const (
	OrderLive OrderStatus = iota + 1
	OrderCanceled
	OrderFulfilled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderLive:
		return "live"
	case OrderCanceled:
		return "canceled"
	case OrderFulfilled:
		return "fulfilled"
	}
	return "unknown"
}

// SellOrder offers one asset for a fixed price. At most one live sell order
// exists per asset id; the asset itself is held in marketplace custody for
// the lifetime of the order.
type SellOrder struct {
	AssetID uint64
	Seller  common.Address
	Price   *uint256.Int
}

// BuyOrder escrows value against a future asset purchase. Terminal records
// are retained so an order id can never stage a second terminal transition.
type BuyOrder struct {
	ID       uint64
	Buyer    common.Address
	AssetID  uint64
	Escrowed *uint256.Int
	Status   OrderStatus
}
