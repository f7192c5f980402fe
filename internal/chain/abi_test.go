package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
)

func TestRevisionCount_DecodesEventPayload(t *testing.T) {
	parsed, err := parseEscrowABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	c := &Client{abi: parsed}

	data, err := parsed.Events[EventPactRevisionRequested].Inputs.NonIndexed().Pack(uint8(2))
	if err != nil {
		t.Fatalf("pack payload: %v", err)
	}

	count, err := c.RevisionCount(types.Log{Data: data})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestResolvedStatus_DecodesEventPayload(t *testing.T) {
	parsed, err := parseEscrowABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	c := &Client{abi: parsed}

	data, err := parsed.Events[EventPactResolved].Inputs.NonIndexed().Pack(uint8(OnChainFailed))
	if err != nil {
		t.Fatalf("pack payload: %v", err)
	}

	status, err := c.ResolvedStatus(types.Log{Data: data})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status != OnChainFailed {
		t.Fatalf("status = %s, want failed", status)
	}
}
