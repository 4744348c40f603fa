package model

import (
	"github.com/holiman/uint256"
)

// VestingSchedule time-locks a committed amount. Nothing is transferable
// before CliffTime; between VestStart and DisbursementEnd the transferable
// portion grows linearly, and at DisbursementEnd the whole amount is free.
type VestingSchedule struct {
	LockedAmount    *uint256.Int
	VestStart       uint64
	CliffTime       uint64
	DisbursementEnd uint64
}

// LockedAt returns the portion of LockedAmount that is still untransferable
// at unix time t. The result is non-increasing in t.
func (v *VestingSchedule) LockedAt(t uint64) *uint256.Int {
	if t >= v.DisbursementEnd {
		return uint256.NewInt(0)
	}
	if t < v.CliffTime {
		return new(uint256.Int).Set(v.LockedAmount)
	}
	remaining := uint256.NewInt(v.DisbursementEnd - t)
	span := uint256.NewInt(v.DisbursementEnd - v.VestStart)
	locked, _ := new(uint256.Int).MulDivOverflow(v.LockedAmount, remaining, span)
	return locked
}
