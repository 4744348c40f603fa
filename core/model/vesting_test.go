package model

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestLockedAtBoundaries(t *testing.T) {
	sched := &VestingSchedule{
		LockedAmount:    uint256.NewInt(1000),
		VestStart:       1000,
		CliffTime:       2000,
		DisbursementEnd: 5000,
	}

	assert.Zero(t, sched.LockedAt(0).Cmp(uint256.NewInt(1000)))
	assert.Zero(t, sched.LockedAt(1999).Cmp(uint256.NewInt(1000)))

	// At the cliff the vest-start-anchored line applies: 3000 of the 4000
	// second window remain, so 750 stays locked.
	assert.Zero(t, sched.LockedAt(2000).Cmp(uint256.NewInt(750)))
	assert.Zero(t, sched.LockedAt(3000).Cmp(uint256.NewInt(500)))

	assert.True(t, sched.LockedAt(5000).IsZero())
	assert.True(t, sched.LockedAt(999_999).IsZero())
}

func TestLockedAtMonotonic(t *testing.T) {
	sched := &VestingSchedule{
		LockedAmount:    uint256.NewInt(12345),
		VestStart:       100,
		CliffTime:       500,
		DisbursementEnd: 10_000,
	}

	prev := sched.LockedAt(0)
	for ts := uint64(1); ts <= 11_000; ts += 37 {
		cur := sched.LockedAt(ts)
		assert.LessOrEqual(t, cur.Cmp(prev), 0, "locked amount increased at t=%d", ts)
		prev = cur
	}
}

func TestLockedAtLargeAmounts(t *testing.T) {
	// Near-max locked amounts must not overflow the proration.
	huge := new(uint256.Int).SetAllOne()
	sched := &VestingSchedule{
		LockedAmount:    huge,
		VestStart:       0,
		CliffTime:       0,
		DisbursementEnd: 100,
	}

	half := sched.LockedAt(50)
	expected := new(uint256.Int).Div(huge, uint256.NewInt(2))
	assert.Zero(t, half.Cmp(expected))
}
