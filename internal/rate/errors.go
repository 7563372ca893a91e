package rate

import (
	"fmt"

	"github.com/MrEthical07/goTrust/autherr"
)

var (
	// ErrRateLimited is returned once a counter passed its budget.
	ErrRateLimited = fmt.Errorf("%w: attempt budget exhausted", autherr.ErrRateLimited)
	// ErrRedisUnavailable wraps Redis transport failures.
	ErrRedisUnavailable = fmt.Errorf("%w: rate limiter redis unavailable", autherr.ErrServiceUnavailable)
)
