// Command mgindb-bench drives an MginDB server with a mix of QUERY and SET
// commands and reports throughput and latency percentiles.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/loganszeto/mgindb-go/client"
	"github.com/loganszeto/mgindb-go/internal/config"
	"github.com/loganszeto/mgindb-go/internal/logger"
)

type benchConfig struct {
	sessions  int
	ops       int
	ratioGet  float64
	valueSize int
	keySpace  int
	timeout   time.Duration
}

type result struct {
	ops     int64
	errors  int64
	elapsed time.Duration
	lats    []time.Duration
}

func main() {
	fs := flag.NewFlagSet("mgindb-bench", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	host := fs.StringP("host", "H", "", "server host")
	port := fs.IntP("port", "p", 0, "server port")
	user := fs.StringP("user", "u", "", "username")
	password := fs.String("password", "", "password")
	var bc benchConfig
	fs.IntVar(&bc.sessions, "sessions", 10, "concurrent sessions, one goroutine each")
	fs.IntVar(&bc.ops, "ops", 10000, "total operations")
	fs.Float64Var(&bc.ratioGet, "ratio_get", 0.8, "share of QUERY commands")
	fs.IntVar(&bc.valueSize, "value_size", 128, "value size bytes")
	fs.IntVar(&bc.keySpace, "keys", 1000, "number of distinct keys")
	fs.DurationVar(&bc.timeout, "timeout", 5*time.Second, "per-command timeout")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config: %v", err)
	}
	if fs.Changed("host") {
		cfg.Host = *host
	}
	if fs.Changed("port") {
		cfg.Port = *port
	}
	if fs.Changed("user") {
		cfg.Username = *user
	}
	if fs.Changed("password") {
		cfg.Password = *password
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config: %v", err)
	}
	if bc.sessions <= 0 || bc.keySpace <= 0 {
		logger.Fatal("sessions and keys must be > 0")
	}

	res := runBench(context.Background(), cfg.Options(), bc)
	fmt.Printf("Total ops: %d\n", res.ops)
	fmt.Printf("Errors: %d\n", res.errors)
	fmt.Printf("Elapsed: %s\n", res.elapsed)
	fmt.Printf("Ops/sec: %.2f\n", float64(res.ops)/res.elapsed.Seconds())
	printLatencyStats(res.lats)
}

// runBench splits bc.ops across bc.sessions sessions. Each session issues
// its commands one at a time so replies pair with the right command.
func runBench(ctx context.Context, opts client.Options, bc benchConfig) result {
	value := strings.Repeat("x", bc.valueSize)
	keys := make([]string, bc.keySpace)
	for i := range keys {
		keys[i] = fmt.Sprintf("bench:%d", i)
	}

	var opsDone, errCount atomic.Int64
	latCh := make(chan time.Duration, bc.ops)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < bc.sessions; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s := client.NewSession(opts)
			if _, err := s.Open(ctx); err != nil {
				logger.Err("session %d: %v", id, err)
				errCount.Add(1)
				return
			}
			defer s.Close()
			c := client.New(s)
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			for {
				if int(opsDone.Add(1)) > bc.ops {
					return
				}
				key := keys[rng.Intn(len(keys))]
				opCtx, cancel := context.WithTimeout(ctx, bc.timeout)
				startOp := time.Now()
				var err error
				if rng.Float64() < bc.ratioGet {
					_, err = c.Query(opCtx, key, "", "")
				} else {
					_, err = c.Set(opCtx, key, value)
				}
				cancel()
				if err != nil {
					errCount.Add(1)
					logger.Trace("session %d: %v", id, err)
					// a lost reply would shift every later pairing
					return
				}
				latCh <- time.Since(startOp)
			}
		}(i)
	}
	wg.Wait()
	close(latCh)

	res := result{errors: errCount.Load(), elapsed: time.Since(start)}
	for d := range latCh {
		res.lats = append(res.lats, d)
	}
	res.ops = int64(len(res.lats))
	return res
}

func printLatencyStats(lats []time.Duration) {
	if len(lats) == 0 {
		fmt.Println("No latency samples")
		return
	}
	sort.Slice(lats, func(i, j int) bool { return lats[i] < lats[j] })
	fmt.Printf("p50: %s\n", percentile(lats, 50))
	fmt.Printf("p95: %s\n", percentile(lats, 95))
	fmt.Printf("p99: %s\n", percentile(lats, 99))
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	return sorted[len(sorted)*p/100]
}
