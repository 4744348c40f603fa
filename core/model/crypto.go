package model

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

func Keccak256(data string) string {
	hasher := sha3.NewLegacyKeccak256()

	hasher.Write([]byte(data))

	hash := hasher.Sum(nil)

	return fmt.Sprintf("%x", hash)
}

// KeccakHash hashes the concatenation of chunks.
func KeccakHash(chunks ...[]byte) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		hasher.Write(c)
	}
	var h common.Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// WhitelistLeaf is the merkle leaf committed for an eligible account.
func WhitelistLeaf(account common.Address) common.Hash {
	return KeccakHash(account.Bytes())
}

// CombineHashes hashes an ordered pair, smaller hash first.
func CombineHashes(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return KeccakHash(a[:], b[:])
	}
	return KeccakHash(b[:], a[:])
}

// VerifyMerkleProof checks a sorted-pair membership proof of leaf under root.
func VerifyMerkleProof(root, leaf common.Hash, proof []common.Hash) bool {
	computed := leaf
	for _, p := range proof {
		computed = CombineHashes(computed, p)
	}
	return computed == root
}

// MintDigest is the raw message a signer commits to when authorizing a mint:
// the ledger identity, the amount and the recipient, each as a 32-byte word.
func MintDigest(ledger common.Address, amount *uint256.Int, recipient common.Address) common.Hash {
	var ledgerWord, recipientWord [32]byte
	copy(ledgerWord[12:], ledger.Bytes())
	copy(recipientWord[12:], recipient.Bytes())
	amountWord := amount.Bytes32()
	return KeccakHash(ledgerWord[:], amountWord[:], recipientWord[:])
}

// EthSignedDigest wraps a digest in the personal-sign envelope so signatures
// produced by standard wallets verify against it.
func EthSignedDigest(digest common.Hash) common.Hash {
	return KeccakHash([]byte("\x19Ethereum Signed Message:\n32"), digest[:])
}

// RecoverSigner recovers the signing account from a 65-byte [R || S || V]
// signature over digest. V may be given as 0/1 or 27/28.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// ConsumedSigKey keys the consumed-signature set by (message, signer), so the
// same message co-signed by a later signer is tracked independently.
func ConsumedSigKey(digest common.Hash, signer common.Address) common.Hash {
	return KeccakHash(digest[:], signer.Bytes())
}
