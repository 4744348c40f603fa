// Package assets holds the non-fungible asset registry the marketplace uses
// as its asset-transfer collaborator. Ownership moves only through MoveAsset,
// and only the owner or an operator the owner approved may move an asset.
package assets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAssetExists   = errors.New("asset already minted")
	ErrAssetNotFound = errors.New("asset not found")
	ErrNotOwner      = errors.New("sender does not own asset")
	ErrNotOperator   = errors.New("operator not approved")
)

type Registry struct {
	mu        sync.Mutex
	owners    map[uint64]common.Address
	operators map[common.Address]map[common.Address]bool
}

func NewRegistry() *Registry {
	return &Registry{
		owners:    make(map[uint64]common.Address),
		operators: make(map[common.Address]map[common.Address]bool),
	}
}

func (r *Registry) Mint(to common.Address, assetID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[assetID]; ok {
		return fmt.Errorf("%w: %d", ErrAssetExists, assetID)
	}
	r.owners[assetID] = to
	return nil
}

func (r *Registry) OwnerOf(assetID uint64) (common.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[assetID]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %d", ErrAssetNotFound, assetID)
	}
	return owner, nil
}

// SetApprovalForAll lets operator move any of owner's assets until revoked.
func (r *Registry) SetApprovalForAll(owner, operator common.Address, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops, ok := r.operators[owner]
	if !ok {
		ops = make(map[common.Address]bool)
		r.operators[owner] = ops
	}
	if approved {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}
}

// MoveAsset transfers assetID from from to to. from must be the current
// owner, and operator must be from itself or an approved operator of from.
func (r *Registry) MoveAsset(operator, from, to common.Address, assetID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[assetID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrAssetNotFound, assetID)
	}
	if owner != from {
		return fmt.Errorf("%w: asset %d is owned by %s", ErrNotOwner, assetID, owner.Hex())
	}
	if operator != from && !r.operators[from][operator] {
		return fmt.Errorf("%w: %s for %s", ErrNotOperator, operator.Hex(), from.Hex())
	}
	r.owners[assetID] = to
	return nil
}
