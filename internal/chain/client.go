package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

var (
	// ErrConfirmTimeout: the transaction was not mined within the wait
	// window. Retryable: the caller keeps the hash and re-polls; it must
	// never re-submit a new transaction for the same logical action.
	ErrConfirmTimeout = errors.New("confirmation timeout")

	// ErrTxFailed: the transaction was mined but reverted. Not retryable.
	ErrTxFailed = errors.New("transaction reverted on-chain")

	// ErrEventMismatch: the receipt carries no matching event from the
	// escrow contract for the expected pact id. The client-supplied hash
	// does not prove the claimed action.
	ErrEventMismatch = errors.New("no matching escrow event in receipt")
)

// Client talks to the escrow contract over JSON-RPC. It verifies
// client-reported transaction hashes server-side and reads contract state
// for reconciliation. It never computes balances locally.
type Client struct {
	rpc      *ethclient.Client
	contract common.Address
	abi      abi.ABI

	confirmTimeout time.Duration
	pollInterval   time.Duration

	log *zap.Logger
}

func Dial(ctx context.Context, rpcURL, contractAddr string, confirmTimeout, pollInterval time.Duration, log *zap.Logger) (*Client, error) {
	if !common.IsHexAddress(contractAddr) {
		return nil, fmt.Errorf("invalid escrow contract address %q", contractAddr)
	}

	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}

	parsed, err := parseEscrowABI()
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}

	if confirmTimeout <= 0 {
		confirmTimeout = 90 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}

	return &Client{
		rpc:            rpc,
		contract:       common.HexToAddress(contractAddr),
		abi:            parsed,
		confirmTimeout: confirmTimeout,
		pollInterval:   pollInterval,
		log:            log,
	}, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) ContractAddress() common.Address {
	return c.contract
}

// EventProof is the server-side verification result for one confirmed
// escrow event.
type EventProof struct {
	TxHash      common.Hash
	BlockNumber uint64
	Event       string
}

// OnChainPact is the escrow contract's record for one pact id.
type OnChainPact struct {
	Creator        common.Address
	Partner        common.Address
	Stake          *big.Int
	Status         OnChainStatus
	RejectionCount uint8
}

// Exists reports whether the contract holds a record at all (proposePact
// was confirmed for this id).
func (p *OnChainPact) Exists() bool {
	return p.Creator != (common.Address{})
}

// WaitReceipt polls for the receipt of txHash until it is mined or the
// confirmation window elapses. On timeout no state was touched and the
// same hash can be re-polled.
func (c *Client) WaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	deadline := time.NewTimer(c.confirmTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(c.pollInterval)
	defer tick.Stop()

	for {
		receipt, err := c.rpc.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetch receipt %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("tx %s not mined after %s: %w", txHash.Hex(), c.confirmTimeout, ErrConfirmTimeout)
		case <-tick.C:
		}
	}
}

// VerifyPactEvent is the trust boundary for client-supplied hashes: it
// fetches the receipt independently, requires success, and requires a log
// emitted by the escrow contract with the expected event signature and the
// expected pact id in the indexed topic. The hash alone proves nothing.
func (c *Client) VerifyPactEvent(ctx context.Context, txHash string, event string, pactID [32]byte) (*EventProof, error) {
	ev, ok := c.abi.Events[event]
	if !ok {
		return nil, fmt.Errorf("unknown escrow event %q", event)
	}

	hash := common.HexToHash(txHash)
	receipt, err := c.WaitReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("tx %s: %w", hash.Hex(), ErrTxFailed)
	}

	want := common.BytesToHash(pactID[:])
	for _, lg := range receipt.Logs {
		if lg.Address != c.contract {
			continue
		}
		if len(lg.Topics) < 2 || lg.Topics[0] != ev.ID || lg.Topics[1] != want {
			continue
		}
		return &EventProof{
			TxHash:      hash,
			BlockNumber: receipt.BlockNumber.Uint64(),
			Event:       event,
		}, nil
	}

	return nil, fmt.Errorf("tx %s lacks %s for pact %s: %w", hash.Hex(), event, want.Hex(), ErrEventMismatch)
}

// PactRecord reads the contract's pacts(pactId) mapping.
func (c *Client) PactRecord(ctx context.Context, pactID [32]byte) (*OnChainPact, error) {
	data, err := c.abi.Pack("pacts", pactID)
	if err != nil {
		return nil, fmt.Errorf("pack pacts call: %w", err)
	}

	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call pacts(%s): %w", common.BytesToHash(pactID[:]).Hex(), err)
	}

	vals, err := c.abi.Unpack("pacts", out)
	if err != nil {
		return nil, fmt.Errorf("unpack pacts result: %w", err)
	}
	if len(vals) != 5 {
		return nil, fmt.Errorf("unexpected pacts result arity %d", len(vals))
	}

	rec := &OnChainPact{}
	var ok bool
	if rec.Creator, ok = vals[0].(common.Address); !ok {
		return nil, fmt.Errorf("unexpected creator type %T", vals[0])
	}
	if rec.Partner, ok = vals[1].(common.Address); !ok {
		return nil, fmt.Errorf("unexpected partner type %T", vals[1])
	}
	if rec.Stake, ok = vals[2].(*big.Int); !ok {
		return nil, fmt.Errorf("unexpected stake type %T", vals[2])
	}
	status, ok := vals[3].(uint8)
	if !ok {
		return nil, fmt.Errorf("unexpected status type %T", vals[3])
	}
	rec.Status = OnChainStatus(status)
	if rec.RejectionCount, ok = vals[4].(uint8); !ok {
		return nil, fmt.Errorf("unexpected rejection count type %T", vals[4])
	}
	return rec, nil
}

// FindPactEvent scans the contract's historical logs for a specific event
// on a specific pact. Used by divergence repair when the off-chain record
// is missing the transaction hash that the interactive path would have
// recorded.
func (c *Client) FindPactEvent(ctx context.Context, event string, pactID [32]byte, fromBlock uint64) (*EventProof, error) {
	ev, ok := c.abi.Events[event]
	if !ok {
		return nil, fmt.Errorf("unknown escrow event %q", event)
	}

	logs, err := c.rpc.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{c.contract},
		Topics: [][]common.Hash{
			{ev.ID},
			{common.BytesToHash(pactID[:])},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("filter %s logs: %w", event, err)
	}
	if len(logs) == 0 {
		return nil, fmt.Errorf("no %s log for pact %s: %w", event, common.BytesToHash(pactID[:]).Hex(), ErrEventMismatch)
	}

	lg := logs[len(logs)-1]
	return &EventProof{TxHash: lg.TxHash, BlockNumber: lg.BlockNumber, Event: event}, nil
}

// FilterPactLogs returns every escrow contract log in [from, to].
func (c *Client) FilterPactLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	logs, err := c.rpc.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.contract},
	})
	if err != nil {
		return nil, fmt.Errorf("filter escrow logs [%d,%d]: %w", from, to, err)
	}
	return logs, nil
}

// DecodeLog identifies an escrow log by event name and extracts the pact
// id topic. ok is false for anonymous or foreign logs.
func (c *Client) DecodeLog(lg types.Log) (event string, pactID common.Hash, ok bool) {
	if len(lg.Topics) < 2 {
		return "", common.Hash{}, false
	}
	for name, ev := range c.abi.Events {
		if ev.ID == lg.Topics[0] {
			return name, lg.Topics[1], true
		}
	}
	return "", common.Hash{}, false
}

// ResolvedStatus unpacks the newStatus payload of a PactResolved log.
func (c *Client) ResolvedStatus(lg types.Log) (OnChainStatus, error) {
	vals, err := c.abi.Unpack(EventPactResolved, lg.Data)
	if err != nil {
		return 0, fmt.Errorf("unpack PactResolved: %w", err)
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("unexpected PactResolved arity %d", len(vals))
	}
	status, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected newStatus type %T", vals[0])
	}
	return OnChainStatus(status), nil
}

// RevisionCount unpacks the rejectionCount payload of a
// PactRevisionRequested log. The count is the contract's counter after
// that revision, so replaying the same log is recognizable as a no-op.
func (c *Client) RevisionCount(lg types.Log) (uint8, error) {
	vals, err := c.abi.Unpack(EventPactRevisionRequested, lg.Data)
	if err != nil {
		return 0, fmt.Errorf("unpack PactRevisionRequested: %w", err)
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("unexpected PactRevisionRequested arity %d", len(vals))
	}
	count, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected rejectionCount type %T", vals[0])
	}
	return count, nil
}

// LatestBlock is the current head number, used as the indexer cursor
// upper bound.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return n, nil
}
