package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Escrow contract surface. Pact ids are bytes32; all value-bearing legs
// are payable and emit an event carrying the id as an indexed topic.
const escrowABIJSON = `[
  {"inputs":[{"internalType":"bytes32","name":"pactId","type":"bytes32"},{"internalType":"address","name":"partner","type":"address"}],"name":"proposePact","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[{"internalType":"bytes32","name":"pactId","type":"bytes32"}],"name":"acceptPact","outputs":[],"stateMutability":"payable","type":"function"},
  {"inputs":[{"internalType":"bytes32","name":"pactId","type":"bytes32"}],"name":"signalCompletion","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"bytes32","name":"pactId","type":"bytes32"}],"name":"confirmCompletion","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"bytes32","name":"pactId","type":"bytes32"}],"name":"requestRevision","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"name":"pacts","outputs":[{"internalType":"address","name":"creator","type":"address"},{"internalType":"address","name":"partner","type":"address"},{"internalType":"uint256","name":"stakeAmount","type":"uint256"},{"internalType":"uint8","name":"status","type":"uint8"},{"internalType":"uint8","name":"rejectionCount","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"anonymous":false,"inputs":[{"indexed":true,"internalType":"bytes32","name":"pactId","type":"bytes32"},{"indexed":true,"internalType":"address","name":"creator","type":"address"},{"indexed":true,"internalType":"address","name":"partner","type":"address"}],"name":"PactProposed","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"internalType":"bytes32","name":"pactId","type":"bytes32"}],"name":"PactAccepted","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"internalType":"bytes32","name":"pactId","type":"bytes32"}],"name":"PactWorkSubmitted","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"internalType":"bytes32","name":"pactId","type":"bytes32"},{"indexed":false,"internalType":"uint8","name":"rejectionCount","type":"uint8"}],"name":"PactRevisionRequested","type":"event"},
  {"anonymous":false,"inputs":[{"indexed":true,"internalType":"bytes32","name":"pactId","type":"bytes32"},{"indexed":false,"internalType":"uint8","name":"newStatus","type":"uint8"}],"name":"PactResolved","type":"event"}
]`

// Event names emitted by the escrow contract.
const (
	EventPactProposed          = "PactProposed"
	EventPactAccepted          = "PactAccepted"
	EventPactWorkSubmitted     = "PactWorkSubmitted"
	EventPactRevisionRequested = "PactRevisionRequested"
	EventPactResolved          = "PactResolved"
)

// OnChainStatus mirrors the contract's status enum.
type OnChainStatus uint8

const (
	OnChainProposed OnChainStatus = iota
	OnChainActive
	OnChainPendingConfirmation
	OnChainCompleted
	OnChainFailed
)

func (s OnChainStatus) String() string {
	switch s {
	case OnChainProposed:
		return "proposed"
	case OnChainActive:
		return "active"
	case OnChainPendingConfirmation:
		return "pending_confirmation"
	case OnChainCompleted:
		return "completed"
	case OnChainFailed:
		return "failed"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

func parseEscrowABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(escrowABIJSON))
}
