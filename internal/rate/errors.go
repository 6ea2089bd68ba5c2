package rate

import "errors"

var (
	// ErrRedisUnavailable is an exported constant or variable used by the risk assessor.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
