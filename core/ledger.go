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

// LedgerConfig fixes the ledger's identity and authorization roots at
// construction. MerkleRoot is the only root whitelist proofs are ever
// verified against.
type LedgerConfig struct {
	Name          string
	Symbol        string
	Address       common.Address
	MaxSupply     *uint256.Int
	MerkleRoot    common.Hash
	Signer        common.Address
	InitialHolder common.Address
	InitialSupply *uint256.Int
	Now           func() time.Time
	Sink          EventSink
}

// Ledger is the fungible value ledger: per-holder balances and allowances,
// per-holder vesting locks, and the two authorized mint paths. It also serves
// as the marketplace's value-transfer collaborator.
type Ledger struct {
	mu     sync.Mutex
	name   string
	symbol string
	addr   common.Address
	now    func() time.Time
	sink   EventSink

	maxSupply   *uint256.Int
	totalSupply *uint256.Int
	root        common.Hash
	signer      common.Address

	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
	schedules  map[common.Address]*model.VestingSchedule
	usedLeaves map[common.Hash]bool
	usedSigs   map[common.Hash]bool
}

var _ ValueMover = (*Ledger)(nil)

func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	if cfg.MaxSupply == nil || cfg.MaxSupply.IsZero() {
		return nil, fmt.Errorf("%w: max supply required", ErrInvalidArgument)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	l := &Ledger{
		name:        cfg.Name,
		symbol:      cfg.Symbol,
		addr:        cfg.Address,
		now:         now,
		sink:        cfg.Sink,
		maxSupply:   new(uint256.Int).Set(cfg.MaxSupply),
		totalSupply: uint256.NewInt(0),
		root:        cfg.MerkleRoot,
		signer:      cfg.Signer,
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
		schedules:   make(map[common.Address]*model.VestingSchedule),
		usedLeaves:  make(map[common.Hash]bool),
		usedSigs:    make(map[common.Hash]bool),
	}
	if cfg.InitialSupply != nil && !cfg.InitialSupply.IsZero() {
		if err := l.mint(cfg.InitialHolder, cfg.InitialSupply); err != nil {
			return nil, err
		}
	}
	logrus.Infof("ledger %s (%s) created at %s, signer %s", l.name, l.symbol, l.addr.Hex(), l.signer.Hex())
	return l, nil
}

func (l *Ledger) Name() string            { return l.name }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Address() common.Address { return l.addr }

func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.totalSupply)
}

func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(account)
}

// SpendableBalanceOf is the balance minus whatever the account's vesting
// schedule still locks at the current time.
func (l *Ledger) SpendableBalanceOf(account common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.spendable(account, uint64(l.now().Unix()))
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.allowances[owner][spender]; ok {
		return new(uint256.Int).Set(a)
	}
	return uint256.NewInt(0)
}

func (l *Ledger) Signer() common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.signer
}

// Transfer moves amount from the caller's spendable balance to to.
func (l *Ledger) Transfer(caller, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.move(caller, to, amount); err != nil {
		logrus.Warnf("transfer rejected: %v", err)
		return err
	}
	logrus.Infof("transfer %s from %s to %s", amount, caller.Hex(), to.Hex())
	l.emit(Event{Op: "transfer", Actor: caller, Counterparty: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// Approve grants spender the right to move up to amount of the caller's
// balance.
func (l *Ledger) Approve(caller, spender common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil {
		return fmt.Errorf("%w: allowance amount required", ErrInvalidArgument)
	}
	inner, ok := l.allowances[caller]
	if !ok {
		inner = make(map[common.Address]*uint256.Int)
		l.allowances[caller] = inner
	}
	inner[spender] = new(uint256.Int).Set(amount)

	logrus.Infof("%s approved %s to spend %s", caller.Hex(), spender.Hex(), amount)
	l.emit(Event{Op: "approve", Actor: caller, Counterparty: spender, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// spender's allowance.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.transferFrom(spender, from, to, amount); err != nil {
		logrus.Warnf("transferFrom rejected: %v", err)
		return err
	}
	logrus.Infof("transfer %s from %s to %s by %s", amount, from.Hex(), to.Hex(), spender.Hex())
	l.emit(Event{Op: "transfer", Actor: from, Counterparty: to, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// MoveValue implements ValueMover for the marketplace. The marketplace emits
// its own order events, so the collaborator call stays quiet.
func (l *Ledger) MoveValue(operator, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferFrom(operator, from, to, amount)
}

// NewTimeLock locks amount of the caller's balance under a fresh vesting
// schedule. A second schedule is rejected while the prior one still holds
// locked funds; a fully disbursed schedule may be replaced.
func (l *Ledger) NewTimeLock(caller common.Address, amount *uint256.Int, vestStart, cliffTime, disbursementEnd uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: lock needs a nonzero amount", ErrInvalidArgument)
	}
	if vestStart > cliffTime || cliffTime > disbursementEnd {
		return fmt.Errorf("%w: lock times must satisfy vestStart <= cliffTime <= disbursementEnd", ErrInvalidArgument)
	}
	if disbursementEnd == vestStart {
		return fmt.Errorf("%w: disbursement window is empty", ErrInvalidArgument)
	}
	at := uint64(l.now().Unix())
	if sched, ok := l.schedules[caller]; ok && !sched.LockedAt(at).IsZero() {
		return fmt.Errorf("%w: an active time lock still holds funds", ErrInvalidState)
	}
	free := l.spendable(caller, at)
	if free.Cmp(amount) < 0 {
		return fmt.Errorf("%w: spendable balance %s below lock amount %s", ErrInsufficientFunds, free, amount)
	}
	l.schedules[caller] = &model.VestingSchedule{
		LockedAmount:    new(uint256.Int).Set(amount),
		VestStart:       vestStart,
		CliffTime:       cliffTime,
		DisbursementEnd: disbursementEnd,
	}

	logrus.Infof("%s locked %s until %d (cliff %d)", caller.Hex(), amount, disbursementEnd, cliffTime)
	l.emit(Event{Op: "time_lock", Actor: caller, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// MintTokensWithWhitelist mints amount to the caller against a merkle
// membership proof. Verification runs against the root committed at
// construction; the caller-supplied root is never authoritative. Each leaf
// claims once.
func (l *Ledger) MintTokensWithWhitelist(caller common.Address, amount *uint256.Int, claimedRoot common.Hash, proof []common.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: mint needs a nonzero amount", ErrInvalidArgument)
	}
	if claimedRoot != l.root {
		logrus.Warnf("whitelist mint rejected: claimed root %s is not the committed root", claimedRoot.Hex())
		return fmt.Errorf("%w: claimed root does not match committed root", ErrVerificationFailure)
	}
	leaf := model.WhitelistLeaf(caller)
	if !model.VerifyMerkleProof(l.root, leaf, proof) {
		logrus.Warnf("whitelist mint rejected: proof for %s does not reach committed root", caller.Hex())
		return fmt.Errorf("%w: merkle proof does not verify against committed root", ErrVerificationFailure)
	}
	if l.usedLeaves[leaf] {
		return fmt.Errorf("%w: whitelist leaf already claimed", ErrReplay)
	}
	if err := l.mint(caller, amount); err != nil {
		return err
	}
	l.usedLeaves[leaf] = true

	logrus.Infof("whitelist mint: %s to %s", amount, caller.Hex())
	l.emit(Event{Op: "mint_whitelist", Actor: caller, Amount: new(uint256.Int).Set(amount)})
	return nil
}

// SetSigner rotates the mint co-signer. Only the current signer may rotate.
func (l *Ledger) SetSigner(caller, newSigner common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.signer {
		logrus.Warnf("signer rotation rejected: %s is not the current signer", caller.Hex())
		return fmt.Errorf("%w: only the current signer may rotate the signer", ErrUnauthorized)
	}
	l.signer = newSigner

	logrus.Infof("signer rotated from %s to %s", caller.Hex(), newSigner.Hex())
	l.emit(Event{Op: "set_signer", Actor: caller, Counterparty: newSigner})
	return nil
}

// MintTokensWithSignature mints amount to the caller if sig is the
// registered signer's signature over (ledger, amount, caller). Each
// (recipient, amount, signer) message is honored once.
func (l *Ledger) MintTokensWithSignature(caller common.Address, amount *uint256.Int, sig []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: mint needs a nonzero amount", ErrInvalidArgument)
	}
	digest := model.EthSignedDigest(model.MintDigest(l.addr, amount, caller))
	recovered, err := model.RecoverSigner(digest, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerificationFailure, err)
	}
	if recovered != l.signer {
		logrus.Warnf("signature mint rejected: recovered %s, registered signer %s", recovered.Hex(), l.signer.Hex())
		return fmt.Errorf("%w: signature is not from the registered signer", ErrVerificationFailure)
	}
	key := model.ConsumedSigKey(digest, recovered)
	if l.usedSigs[key] {
		return fmt.Errorf("%w: signature already consumed", ErrReplay)
	}
	if err := l.mint(caller, amount); err != nil {
		return err
	}
	l.usedSigs[key] = true

	logrus.Infof("signature mint: %s to %s authorized by %s", amount, caller.Hex(), recovered.Hex())
	l.emit(Event{Op: "mint_signature", Actor: caller, Counterparty: recovered, Amount: new(uint256.Int).Set(amount)})
	return nil
}

func (l *Ledger) balanceOf(account common.Address) *uint256.Int {
	if b, ok := l.balances[account]; ok {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

func (l *Ledger) spendable(account common.Address, at uint64) *uint256.Int {
	bal := l.balanceOf(account)
	sched, ok := l.schedules[account]
	if !ok {
		return bal
	}
	locked := sched.LockedAt(at)
	if locked.IsZero() {
		return bal
	}
	if bal.Cmp(locked) <= 0 {
		return uint256.NewInt(0)
	}
	return bal.Sub(bal, locked)
}

func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: transfer needs a nonzero amount", ErrInvalidArgument)
	}
	free := l.spendable(from, uint64(l.now().Unix()))
	if free.Cmp(amount) < 0 {
		return fmt.Errorf("%w: spendable balance %s below %s", ErrInsufficientFunds, free, amount)
	}
	fromBal := l.balances[from]
	fromBal.Sub(fromBal, amount)
	toBal, ok := l.balances[to]
	if !ok {
		toBal = uint256.NewInt(0)
		l.balances[to] = toBal
	}
	toBal.Add(toBal, amount)
	return nil
}

func (l *Ledger) transferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("%w: transfer needs a nonzero amount", ErrInvalidArgument)
	}
	var allowance *uint256.Int
	if spender != from {
		allowance = l.allowances[from][spender]
		if allowance == nil || allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: allowance of %s for %s below %s", ErrInsufficientFunds, from.Hex(), spender.Hex(), amount)
		}
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	if allowance != nil {
		allowance.Sub(allowance, amount)
	}
	return nil
}

func (l *Ledger) mint(to common.Address, amount *uint256.Int) error {
	next, overflow := new(uint256.Int).AddOverflow(l.totalSupply, amount)
	if overflow || next.Cmp(l.maxSupply) > 0 {
		return fmt.Errorf("%w: mint of %s exceeds remaining mintable supply", ErrSupplyExceeded, amount)
	}
	l.totalSupply = next
	toBal, ok := l.balances[to]
	if !ok {
		toBal = uint256.NewInt(0)
		l.balances[to] = toBal
	}
	toBal.Add(toBal, amount)
	return nil
}

func (l *Ledger) emit(ev Event) {
	if l.sink == nil {
		return
	}
	ev.Time = l.now().Unix()
	if err := l.sink.Record(ev); err != nil {
		logrus.Warnf("record %s event: %v", ev.Op, err)
	}
}
