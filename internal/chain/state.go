package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/marketscan/internal/domain"
)

// StateReader reads the live status and outcome of a market contract.
type StateReader struct {
	eth       *ethclient.Client
	marketABI abi.ABI
	timeout   time.Duration
}

// NewStateReader creates a StateReader that issues eth_call reads against
// market contracts using the given market ABI.
func NewStateReader(eth *ethclient.Client, marketABI abi.ABI, timeout time.Duration) *StateReader {
	return &StateReader{
		eth:       eth,
		marketABI: marketABI,
		timeout:   timeout,
	}
}

// ReadMarketState calls status() and outcome() on the market at address. The
// status read must succeed; an outcome read failure (oracle not yet set, call
// revert) leaves Outcome nil so a status-only update is never blocked.
func (r *StateReader) ReadMarketState(ctx context.Context, address string) (domain.MarketState, error) {
	if !common.IsHexAddress(address) {
		return domain.MarketState{}, fmt.Errorf("chain: invalid market address %q", address)
	}
	addr := common.HexToAddress(address)

	status, err := r.callUint8(ctx, addr, "status")
	if err != nil {
		return domain.MarketState{}, fmt.Errorf("chain: read status of %s: %w", address, err)
	}
	if status > uint8(domain.StatusResolved) {
		return domain.MarketState{}, fmt.Errorf("chain: market %s reports unknown status %d", address, status)
	}

	state := domain.MarketState{Status: domain.MarketStatus(status)}

	outcome, err := r.callUint8(ctx, addr, "outcome")
	if err == nil {
		v := int64(outcome)
		state.Outcome = &v
	}
	return state, nil
}

func (r *StateReader) callUint8(ctx context.Context, addr common.Address, method string) (uint8, error) {
	data, err := r.marketABI.Pack(method)
	if err != nil {
		return 0, fmt.Errorf("pack %s(): %w", method, err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	out, err := r.eth.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call %s(): %w", method, err)
	}

	vals, err := r.marketABI.Unpack(method, out)
	if err != nil {
		return 0, fmt.Errorf("unpack %s(): %w", method, err)
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("unpack %s(): want 1 value, got %d", method, len(vals))
	}
	v, ok := vals[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unpack %s(): unexpected type %T", method, vals[0])
	}
	return v, nil
}
