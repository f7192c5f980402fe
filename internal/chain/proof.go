package chain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// WalletProofPrefix versions the challenge format so a signature for
	// one purpose can never be replayed for another.
	WalletProofPrefix = "pactify-wallet-proof-v1/"

	// MaxProofAge bounds replay of a captured signature.
	MaxProofAge = 5 * time.Minute
)

// WalletProof is a signed ownership challenge for an address. The payload
// is a single-use server-issued nonce; the signature is an EIP-191
// personal_sign over the canonical proof message.
type WalletProof struct {
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
	Payload   string `json:"payload"`   // server nonce
	Signature string `json:"signature"` // 0x hex, 65 bytes
}

// ProofMessage is the exact string the wallet signs.
func ProofMessage(payload string, timestamp int64) string {
	return fmt.Sprintf("%s%s:%d", WalletProofPrefix, payload, timestamp)
}

// VerifyWalletProof checks freshness and recovers the signer from the
// EIP-191 digest; the recovered address must match the claimed one.
func VerifyWalletProof(proof WalletProof) error {
	ts := time.Unix(proof.Timestamp, 0)
	if time.Since(ts) > MaxProofAge {
		return fmt.Errorf("proof expired: signed %s ago", time.Since(ts).Round(time.Second))
	}
	if ts.After(time.Now().Add(1 * time.Minute)) {
		return fmt.Errorf("proof timestamp is in the future")
	}

	if !common.IsHexAddress(proof.Address) {
		return fmt.Errorf("invalid address %q", proof.Address)
	}

	sig, err := hexutil.Decode(proof.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature size: %d", len(sig))
	}
	// Wallets produce V in {27,28}; crypto.SigToPub wants {0,1}.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	msg := ProofMessage(proof.Payload, proof.Timestamp)
	digest := personalSignDigest([]byte(msg))

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}

	signer := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(signer.Hex(), proof.Address) {
		return fmt.Errorf("signature was made by %s, not %s", signer.Hex(), proof.Address)
	}
	return nil
}

// personalSignDigest applies the EIP-191 personal message envelope.
func personalSignDigest(msg []byte) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return crypto.Keccak256([]byte(prefixed))
}
