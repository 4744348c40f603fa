package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeccak256KnownVector(t *testing.T) {
	// keccak256("") is the well-known empty-input digest.
	assert.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", Keccak256(""))
}

func TestVerifyMerkleProofFourLeaves(t *testing.T) {
	leaves := []common.Hash{
		WhitelistLeaf(common.HexToAddress("0x01")),
		WhitelistLeaf(common.HexToAddress("0x02")),
		WhitelistLeaf(common.HexToAddress("0x03")),
		WhitelistLeaf(common.HexToAddress("0x04")),
	}
	left := CombineHashes(leaves[0], leaves[1])
	right := CombineHashes(leaves[2], leaves[3])
	root := CombineHashes(left, right)

	assert.True(t, VerifyMerkleProof(root, leaves[0], []common.Hash{leaves[1], right}))
	assert.True(t, VerifyMerkleProof(root, leaves[3], []common.Hash{leaves[2], left}))

	// Wrong sibling order or a foreign leaf must not verify.
	assert.False(t, VerifyMerkleProof(root, leaves[0], []common.Hash{right, leaves[1]}))
	assert.False(t, VerifyMerkleProof(root, WhitelistLeaf(common.HexToAddress("0x05")), []common.Hash{leaves[1], right}))
	assert.False(t, VerifyMerkleProof(root, leaves[0], nil))
}

func TestCombineHashesIsOrderInsensitive(t *testing.T) {
	a := KeccakHash([]byte("a"))
	b := KeccakHash([]byte("b"))
	assert.Equal(t, CombineHashes(a, b), CombineHashes(b, a))
}

func TestRecoverSignerRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	digest := EthSignedDigest(MintDigest(common.HexToAddress("0x1000"), uint256.NewInt(100), common.HexToAddress("0x2000")))
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	got, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Wallet-style signatures carry v in {27, 28}; both encodings recover.
	legacy := make([]byte, len(sig))
	copy(legacy, sig)
	legacy[64] += 27
	got, err = RecoverSigner(digest, legacy)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecoverSignerRejectsMalformed(t *testing.T) {
	digest := KeccakHash([]byte("message"))
	_, err := RecoverSigner(digest, make([]byte, 64))
	assert.Error(t, err)
}

func TestMintDigestBindsAllFields(t *testing.T) {
	ledger := common.HexToAddress("0x1000")
	recipient := common.HexToAddress("0x2000")
	amount := uint256.NewInt(100)

	base := MintDigest(ledger, amount, recipient)
	assert.NotEqual(t, base, MintDigest(common.HexToAddress("0x1001"), amount, recipient))
	assert.NotEqual(t, base, MintDigest(ledger, uint256.NewInt(101), recipient))
	assert.NotEqual(t, base, MintDigest(ledger, amount, common.HexToAddress("0x2001")))
}

func TestConsumedSigKeyDistinguishesSigners(t *testing.T) {
	digest := KeccakHash([]byte("message"))
	a := ConsumedSigKey(digest, common.HexToAddress("0x01"))
	b := ConsumedSigKey(digest, common.HexToAddress("0x02"))
	assert.NotEqual(t, a, b)
}
