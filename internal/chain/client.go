// Package chain provides read-only access to the EVM chain: resolving the
// latest block, fetching MarketDeployed logs in bounded ranges, and reading
// live market contract state.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/marketscan/internal/domain"
)

// Client is a thin wrapper over ethclient scoped to a single factory
// contract and event topic. It is purely observational and has no
// side effects on chain state.
type Client struct {
	eth     *ethclient.Client
	factory common.Address
	topic   common.Hash
	timeout time.Duration
}

// New dials the JSON-RPC endpoint and returns a Client filtering on the given
// factory address and event topic. Dial failure is fatal to the caller; there
// is no point scanning without a provider.
func New(ctx context.Context, endpoint string, factory common.Address, topic common.Hash, timeout time.Duration) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", endpoint, err)
	}
	return &Client{
		eth:     eth,
		factory: factory,
		topic:   topic,
		timeout: timeout,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Eth exposes the underlying ethclient for sub-components that issue their
// own calls (the state reader).
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// CurrentHeight returns the latest block number.
func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	height, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	return height, nil
}

// FetchLogs returns all factory logs matching the configured topic in the
// inclusive range [from, to]. Provider rejections of the range size are
// classified as domain.ErrRangeTooLarge so callers can skip the chunk.
func (c *Client) FetchLogs(ctx context.Context, from, to uint64) ([]types.Log, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.factory},
		Topics:    [][]common.Hash{{c.topic}},
	}

	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		if isRangeError(err) {
			return nil, fmt.Errorf("chain: logs %d-%d: %w", from, to, domain.ErrRangeTooLarge)
		}
		return nil, fmt.Errorf("chain: logs %d-%d: %w", from, to, err)
	}
	return logs, nil
}

// callCtx derives a per-call deadline so one stuck RPC call cannot stall the
// whole backfill.
func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// isRangeError detects provider responses that reject an eth_getLogs range as
// too large. Providers phrase this differently, so this is a substring match
// over the known variants.
func isRangeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"query returned more than",
		"block range",
		"too large",
		"exceed",
		"response size",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
