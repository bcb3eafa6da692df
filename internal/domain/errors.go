package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrRangeTooLarge = errors.New("log query block range too large")
	ErrBadEventShape = errors.New("log does not match MarketDeployed shape")
)
