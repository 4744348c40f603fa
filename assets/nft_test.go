package assets

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = common.HexToAddress("0x01")
	operator = common.HexToAddress("0x02")
	receiver = common.HexToAddress("0x03")
)

func TestMintAndOwnerOf(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Mint(owner, 0))
	got, err := r.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	assert.ErrorIs(t, r.Mint(receiver, 0), ErrAssetExists)
	_, err = r.OwnerOf(1)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestMoveAssetGuards(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Mint(owner, 0))

	// Unknown asset.
	assert.ErrorIs(t, r.MoveAsset(owner, owner, receiver, 9), ErrAssetNotFound)

	// from must be the current owner.
	assert.ErrorIs(t, r.MoveAsset(operator, operator, receiver, 0), ErrNotOwner)

	// An unapproved operator cannot move on the owner's behalf.
	assert.ErrorIs(t, r.MoveAsset(operator, owner, receiver, 0), ErrNotOperator)

	// The owner moves their own asset directly.
	require.NoError(t, r.MoveAsset(owner, owner, receiver, 0))
	got, err := r.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, receiver, got)
}

func TestApprovalForAll(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Mint(owner, 0))

	r.SetApprovalForAll(owner, operator, true)
	require.NoError(t, r.MoveAsset(operator, owner, receiver, 0))

	// Approval follows the grantor, not the asset: the operator holds no
	// approval from the new owner.
	assert.ErrorIs(t, r.MoveAsset(operator, receiver, owner, 0), ErrNotOperator)

	// Revocation takes effect immediately.
	require.NoError(t, r.Mint(owner, 1))
	r.SetApprovalForAll(owner, operator, false)
	assert.ErrorIs(t, r.MoveAsset(operator, owner, receiver, 1), ErrNotOperator)
}
