package rate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindow increments a counter and starts its window on the first hit in
// one round trip, so a crash between INCR and PEXPIRE cannot leave an
// immortal counter.
var fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Hit counts one event against key inside a window of length window and
// returns the new count.
func Hit(ctx context.Context, rdb redis.Scripter, key string, window time.Duration) (int64, error) {
	return fixedWindow.Run(ctx, rdb, []string{key}, window.Milliseconds()).Int64()
}
