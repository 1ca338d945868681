package event

import "errors"

// Sentinel kinds for normalization errors.
var (
	ErrBadDuration = errors.New("unparseable duration")
	ErrBadPayload  = errors.New("malformed event payload")
)
