package mobcan

import "errors"

var (
	ErrIllegalArgument    = errors.New("error in function arguments")
	ErrNotInitialized     = errors.New("driver not initialized")
	ErrAlreadyInitialized = errors.New("driver already initialized")
	ErrInvalidID          = errors.New("identifier out of range for protocol revision")
	ErrInvalidLength      = errors.New("payload longer than 8 bytes")
	ErrCapacityExceeded   = errors.New("no free receive mailbox")
	ErrNoMessage          = errors.New("no message available")
	ErrQueueOverflow      = errors.New("transmit queue full")
	ErrRetryCeiling       = errors.New("receive retry ceiling exceeded, slot rewritten during every copy")
)
