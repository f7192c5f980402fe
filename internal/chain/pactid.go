package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PactID projects an off-chain pact identifier into the contract's bytes32
// key. The projection is keccak256 of the identifier string rather than a
// null-padded copy: off-chain ids (UUID strings) are 36 bytes and cannot
// fit a 32-byte pad, and hashing keeps the mapping injective in practice
// for ids of any length.
func PactID(id string) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256([]byte(id)))
	return out
}

// PactIDHex is the canonical hex form stored alongside the off-chain
// record, so event logs can be resolved back to a pact.
func PactIDHex(id string) string {
	h := PactID(id)
	return common.BytesToHash(h[:]).Hex()
}
