package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goTrust/internal/stores"
	"github.com/MrEthical07/goTrust/passkey"
	"github.com/MrEthical07/goTrust/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		sessions    = flag.Int("sessions", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "session lookups to run")
		challenges  = flag.Int("challenges", 2000, "challenges raced in the consume phase")
		racers      = flag.Int("racers", 8, "concurrent consumers per challenge")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "ts", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *challenges <= 0 || *racers <= 1 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, ops and challenges must be > 0; racers must be > 1")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	store := session.NewRedisStore(client, *prefix)

	ids := make([]string, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := 0; i < *sessions; i++ {
		ids[i] = uuid.NewString()
		if err := store.Save(ctx, buildSession(ids[i], i)); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, store, ids, *ops, *concurrency)
	challengeStats, doubleSpends := runChallengePhase(ctx, stores.NewChallengeStore(client, *prefix+"c"), *challenges, *racers)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("challenge", challengeStats)
	if doubleSpends > 0 {
		fmt.Fprintf(os.Stderr, "challenge consumed more than once %d times\n", doubleSpends)
		os.Exit(1)
	}
	fmt.Println("challenge: every challenge consumed exactly once")
}

func runValidatePhase(ctx context.Context, store *session.RedisStore, ids []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := store.Get(ctx, ids[r.Intn(len(ids))])
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runChallengePhase stores each challenge once and lets racers consumers
// fight over it. Exactly one consumer per challenge may win; the second
// return value counts challenges that were won more than once.
func runChallengePhase(ctx context.Context, store *stores.ChallengeStore, count, racers int) (phaseStats, int64) {
	var (
		failures  int64
		doubles   int64
		latencies = make([]time.Duration, 0, count*racers)
		mu        sync.Mutex
	)

	start := time.Now()
	for i := 0; i < count; i++ {
		now := time.Now()
		c := passkey.Challenge{
			Value:     uuid.NewString(),
			Type:      passkey.ChallengeAuthentication,
			IssuedAt:  now,
			ExpiresAt: now.Add(5 * time.Minute),
		}
		if err := store.Put(ctx, c); err != nil {
			atomic.AddInt64(&failures, 1)
			continue
		}

		var (
			wg   sync.WaitGroup
			wins int64
		)
		for r := 0; r < racers; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				t0 := time.Now()
				_, err := store.Consume(ctx, c.Value, passkey.ChallengeAuthentication, time.Now())
				d := time.Since(t0)
				if err == nil {
					atomic.AddInt64(&wins, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		wg.Wait()
		if wins > 1 {
			doubles++
		}
		if wins == 0 {
			atomic.AddInt64(&failures, 1)
		}
	}
	total := time.Since(start)
	return computeStats(total, latencies, failures), doubles
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func buildSession(sid string, i int) session.Session {
	now := time.Now()
	return session.Session{
		SessionID:      sid,
		UserID:         fmt.Sprintf("u%d", i%1000),
		IPAddress:      "198.51.100.10",
		ACR:            1,
		IssuedAt:       now,
		ExpiresAt:      now.Add(24 * time.Hour),
		LastAccessedAt: now,
	}
}
