package domain

import "fmt"

// MarketStatus represents the lifecycle state of a market. Values mirror the
// on-chain status enum and only ever move forward.
type MarketStatus int16

const (
	StatusOpen              MarketStatus = 0
	StatusPendingResolution MarketStatus = 1
	StatusResolved          MarketStatus = 2
)

// String returns a human-readable name for the status.
func (s MarketStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusPendingResolution:
		return "pending_resolution"
	case StatusResolved:
		return "resolved"
	default:
		return fmt.Sprintf("unknown(%d)", int16(s))
	}
}

// Market is a prediction market deployed by the factory contract. A row is
// created exactly once at first sighting of its creation event and is mutated
// only by status reconciliation.
type Market struct {
	Address  string // market contract address, primary key
	MarketID string // on-chain bytes32 id, canonical 0x-prefixed hex
	Question string
	EndTime  int64 // unix seconds after which resolution may occur
	Oracle   string
	Vault    string
	Status   MarketStatus
	Outcome  *int64 // set iff Status == StatusResolved

	// CreatedAt is an approximation derived from the creating block's number
	// (block * 1000), not a wall-clock timestamp.
	CreatedAt int64
}

// CreationEvent is a decoded MarketDeployed log entry.
type CreationEvent struct {
	MarketID    string
	Market      string
	Vault       string
	Question    string
	EndTime     int64
	BlockNumber uint64
}

// MarketState is the live on-chain state of a market contract. Outcome is nil
// when the oracle has not set one yet or the outcome read failed.
type MarketState struct {
	Status  MarketStatus
	Outcome *int64
}
