// Package workload provides a deterministic CPU load used to demonstrate
// and exercise the sampler.
package workload

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// primeTableSize bounds the sieve used to test larger candidates.
const primeTableSize = 10000

// Config configures Run.
type Config struct {
	// Workers is the number of CPU-bound goroutines. Half of them, rounded
	// up, count primes and the rest chain hashes.
	Workers int
	Logger  zerolog.Logger
}

// Result summarizes the work done before the context ended.
type Result struct {
	Primes uint64
	Hashes uint64
}

// Run keeps Workers goroutines busy until ctx is done.
func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.Workers <= 0 {
		return Result{}, fmt.Errorf("invalid worker count %d", cfg.Workers)
	}

	table := PreparePrimes()

	var (
		primes atomic.Uint64
		hashes atomic.Uint64
	)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			if worker%2 == 0 {
				primes.Add(countPrimes(ctx, table, worker))
			} else {
				hashes.Add(chainHashes(ctx))
			}
			return ctx.Err()
		})
	}

	cfg.Logger.Debug().Int("workers", cfg.Workers).Msg("Workload started")

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	res := Result{Primes: primes.Load(), Hashes: hashes.Load()}
	cfg.Logger.Debug().
		Uint64("primes", res.Primes).
		Uint64("hashes", res.Hashes).
		Msg("Workload finished")

	return res, err
}

// PreparePrimes returns the primes below primeTableSize in ascending order.
//
//go:noinline
func PreparePrimes() []int {
	composite := make([]bool, primeTableSize)
	var primes []int
	for i := 2; i < primeTableSize; i++ {
		if composite[i] {
			continue
		}
		primes = append(primes, i)
		for v := i * 2; v < primeTableSize; v += i {
			composite[v] = true
		}
	}
	return primes
}

// IsPrime tests v against table, which must come from PreparePrimes. Values
// of primeTableSize or more are only tested for factors within the table.
//
//go:noinline
func IsPrime(v int, table []int) bool {
	if v < primeTableSize {
		_, found := slices.BinarySearch(table, v)
		return found
	}
	for _, p := range table {
		if v%p == 0 {
			return false
		}
	}
	return true
}

//go:noinline
func countPrimes(ctx context.Context, table []int, seed int) uint64 {
	var n uint64
	v := 2 + seed*primeTableSize
	for {
		for end := v + 1000; v < end; v++ {
			if IsPrime(v, table) {
				n++
			}
		}
		if ctx.Err() != nil {
			return n
		}
	}
}

//go:noinline
func chainHashes(ctx context.Context) uint64 {
	var n uint64
	sum := sha256.Sum256([]byte("coral-sampler"))
	for {
		for i := 0; i < 1000; i++ {
			sum = sha256.Sum256(sum[:])
		}
		n += 1000
		if ctx.Err() != nil {
			return n
		}
	}
}
