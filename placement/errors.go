package placement

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMissingPoint is returned when a node has no point data or does not exist.
	ErrMissingPoint = errors.New("missing point data")

	ErrDuplicatePoint = errors.New("duplicate point")

	ErrSelfLink = errors.New("self link")

	ErrIncompleteObject = errors.New("placed object needs both type and independent rate")

	ErrInvalidPenalty = errors.New("penalty must be within [0, 1]")
)

// ValidatePenalty reports penalties outside [0, 1].
func ValidatePenalty(penalty float64) error {
	if penalty < 0 || penalty > 1 || math.IsNaN(penalty) {
		return fmt.Errorf("%w: %v", ErrInvalidPenalty, penalty)
	}
	return nil
}
