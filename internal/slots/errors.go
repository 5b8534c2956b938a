package slots

import "errors"

var (
	// ErrConfiguration covers empty symbol tables, malformed paylines and
	// grids of the wrong shape.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidBet is returned when a bet lies outside the configured bounds.
	ErrInvalidBet = errors.New("invalid bet")
)
