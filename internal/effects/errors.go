package effects

import "errors"

var (
	// ErrEffectNotFound means the earned effect id does not exist.
	ErrEffectNotFound = errors.New("effect not found")
)
