package orderbook

import "errors"

var (
	// ErrInvalidOrder is returned by Submit when price or quantity is not
	// positive, or the side is unknown. The book is left untouched.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrOrderNotFound is returned by Cancel for ids that are not resting.
	ErrOrderNotFound = errors.New("order not found")
)
