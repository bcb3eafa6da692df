package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/marketscan/internal/domain"
)

// Decoder turns raw MarketDeployed logs into typed creation events.
//
// Topic layout:
//
//	0: event signature
//	1: marketId (bytes32 indexed)
//	2: market   (address indexed)
//	3: vault    (address indexed)
//
// The data segment starts with question (string) and endTime (uint256).
// Newer factory builds append fee parameters after endTime; only the leading
// two fields are unpacked so trailing words are tolerated and ignored.
type Decoder struct {
	eventID  common.Hash
	dataArgs abi.Arguments
}

// NewDecoder builds a Decoder from the factory ABI's MarketDeployed event.
func NewDecoder(factoryABI abi.ABI) (*Decoder, error) {
	event, ok := factoryABI.Events["MarketDeployed"]
	if !ok {
		return nil, fmt.Errorf("chain: factory abi has no MarketDeployed event")
	}

	nonIndexed := event.Inputs.NonIndexed()
	if len(nonIndexed) < 2 {
		return nil, fmt.Errorf("chain: MarketDeployed has %d data fields, want at least question and endTime", len(nonIndexed))
	}
	if nonIndexed[0].Type.T != abi.StringTy {
		return nil, fmt.Errorf("chain: MarketDeployed data field 0 is %s, want string", nonIndexed[0].Type)
	}
	if nonIndexed[1].Type.T != abi.UintTy {
		return nil, fmt.Errorf("chain: MarketDeployed data field 1 is %s, want uint", nonIndexed[1].Type)
	}

	return &Decoder{
		eventID:  event.ID,
		dataArgs: abi.Arguments{nonIndexed[0], nonIndexed[1]},
	}, nil
}

// Topic returns the MarketDeployed signature hash used to filter logs.
func (d *Decoder) Topic() common.Hash {
	return d.eventID
}

// Decode validates and decodes a single log entry. It fails closed: any log
// missing expected topics or with malformed data yields an error that the
// caller should log and skip, never abort the batch on.
func (d *Decoder) Decode(lg types.Log) (domain.CreationEvent, error) {
	if len(lg.Topics) != 4 {
		return domain.CreationEvent{}, fmt.Errorf("%w: got %d topics, want 4", domain.ErrBadEventShape, len(lg.Topics))
	}
	if lg.Topics[0] != d.eventID {
		return domain.CreationEvent{}, fmt.Errorf("%w: unexpected signature %s", domain.ErrBadEventShape, lg.Topics[0])
	}
	// Minimum data: question offset word, endTime word, question length word.
	if len(lg.Data) < 3*32 {
		return domain.CreationEvent{}, fmt.Errorf("%w: data too short (%d bytes)", domain.ErrBadEventShape, len(lg.Data))
	}

	vals, err := d.dataArgs.Unpack(lg.Data)
	if err != nil {
		return domain.CreationEvent{}, fmt.Errorf("%w: %v", domain.ErrBadEventShape, err)
	}
	question, ok := vals[0].(string)
	if !ok {
		return domain.CreationEvent{}, fmt.Errorf("%w: question is %T", domain.ErrBadEventShape, vals[0])
	}
	endTime, ok := vals[1].(*big.Int)
	if !ok {
		return domain.CreationEvent{}, fmt.Errorf("%w: endTime is %T", domain.ErrBadEventShape, vals[1])
	}
	if !endTime.IsInt64() || endTime.Sign() <= 0 {
		return domain.CreationEvent{}, fmt.Errorf("%w: endTime %s out of range", domain.ErrBadEventShape, endTime)
	}

	market := common.BytesToAddress(lg.Topics[2].Bytes())
	vault := common.BytesToAddress(lg.Topics[3].Bytes())
	if market == (common.Address{}) {
		return domain.CreationEvent{}, fmt.Errorf("%w: zero market address", domain.ErrBadEventShape)
	}

	return domain.CreationEvent{
		MarketID:    lg.Topics[1].Hex(),
		Market:      market.Hex(),
		Vault:       vault.Hex(),
		Question:    question,
		EndTime:     endTime.Int64(),
		BlockNumber: lg.BlockNumber,
	}, nil
}
