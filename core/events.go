package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Event records one accepted state transition for external auditing and
// indexing. Seq is assigned by the sink.
type Event struct {
	Seq          uint64         `json:"seq"`
	Time         int64          `json:"time"`
	Op           string         `json:"op"`
	Actor        common.Address `json:"actor"`
	Counterparty common.Address `json:"counterparty"`
	AssetID      uint64         `json:"asset_id,omitempty"`
	OrderID      uint64         `json:"order_id,omitempty"`
	Amount       *uint256.Int   `json:"amount,omitempty"`
}

// EventSink consumes events emitted by the engines. A nil sink disables
// emission; a failing sink never aborts the transition that produced the
// event, it is logged and skipped.
type EventSink interface {
	Record(ev Event) error
}
