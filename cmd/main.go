package main

import (
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"tokenmarket/assets"
	"tokenmarket/core"
	"tokenmarket/core/model"
	"tokenmarket/journal"
)

const (
	EnvJournalPath = "JOURNAL_PATH"
)

func main() {
	journalPath := os.Getenv(EnvJournalPath)
	if journalPath == "" {
		journalPath = filepath.Join(os.TempDir(), "tokenmarket-journal.db")
	}
	j, err := journal.Open(journalPath)
	if err != nil {
		logrus.Fatalf("open journal %s: %v", journalPath, err)
	}
	defer j.Close()

	deployer := common.HexToAddress("0x00000000000000000000000000000000000000d0")
	alice := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000b0")

	signerKey, err := crypto.GenerateKey()
	if err != nil {
		logrus.Fatalf("generate signer key: %v", err)
	}
	signer := crypto.PubkeyToAddress(signerKey.PublicKey)

	// Commit a two-leaf allowlist: alice plus a bootstrap filler leaf.
	aliceLeaf := model.WhitelistLeaf(alice)
	fillerLeaf := model.KeccakHash([]byte("bootstrap-allowlist"))
	root := model.CombineHashes(aliceLeaf, fillerLeaf)

	ledgerAddr := crypto.CreateAddress(deployer, 0)
	marketAddr := crypto.CreateAddress(deployer, 1)

	ledger, err := core.NewLedger(core.LedgerConfig{
		Name:          "Marketplace Token",
		Symbol:        "MKT",
		Address:       ledgerAddr,
		MaxSupply:     new(uint256.Int).SetAllOne(),
		MerkleRoot:    root,
		Signer:        signer,
		InitialHolder: deployer,
		InitialSupply: uint256.NewInt(1_000_000),
		Sink:          j,
	})
	if err != nil {
		logrus.Fatalf("create ledger: %v", err)
	}

	registry := assets.NewRegistry()
	market := core.NewMarketplace(marketAddr, ledger, registry, j)

	for id, owner := range map[uint64]common.Address{0: alice, 1: bob} {
		if err := registry.Mint(owner, id); err != nil {
			logrus.Fatalf("mint asset %d: %v", id, err)
		}
		registry.SetApprovalForAll(owner, marketAddr, true)
	}
	for _, account := range []common.Address{alice, bob} {
		if err := ledger.Transfer(deployer, account, uint256.NewInt(10_000)); err != nil {
			logrus.Fatalf("fund %s: %v", account.Hex(), err)
		}
		if err := ledger.Approve(account, marketAddr, uint256.NewInt(10_000)); err != nil {
			logrus.Fatalf("approve marketplace for %s: %v", account.Hex(), err)
		}
	}

	// Sell side: alice lists asset 0, bob buys it.
	if err := market.PostSellOrder(alice, 0, uint256.NewInt(120)); err != nil {
		logrus.Fatalf("post sell order: %v", err)
	}
	if err := market.BuySellOrder(bob, 0); err != nil {
		logrus.Fatalf("buy sell order: %v", err)
	}

	// Buy side: alice bids on bob's asset 1, trims the bid, bob accepts.
	orderID, err := market.PostBuyOrder(alice, 1, uint256.NewInt(300))
	if err != nil {
		logrus.Fatalf("post buy order: %v", err)
	}
	if err := market.DecreaseBuyOrder(alice, orderID, uint256.NewInt(100)); err != nil {
		logrus.Fatalf("decrease buy order: %v", err)
	}
	if err := market.AcceptBuyOrder(bob, orderID); err != nil {
		logrus.Fatalf("accept buy order: %v", err)
	}

	// Mint paths: alice claims her allowlist leaf, bob redeems a co-signed mint.
	if err := ledger.MintTokensWithWhitelist(alice, uint256.NewInt(10), root, []common.Hash{fillerLeaf}); err != nil {
		logrus.Fatalf("whitelist mint: %v", err)
	}
	mintAmount := uint256.NewInt(100)
	digest := model.EthSignedDigest(model.MintDigest(ledgerAddr, mintAmount, bob))
	sig, err := crypto.Sign(digest.Bytes(), signerKey)
	if err != nil {
		logrus.Fatalf("sign mint authorization: %v", err)
	}
	if err := ledger.MintTokensWithSignature(bob, mintAmount, sig); err != nil {
		logrus.Fatalf("signature mint: %v", err)
	}

	events, err := j.Events()
	if err != nil {
		logrus.Fatalf("replay journal: %v", err)
	}
	logrus.Infof("journal %s holds %d events, total supply %s", journalPath, len(events), ledger.TotalSupply())
}
