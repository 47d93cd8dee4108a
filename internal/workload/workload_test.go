package workload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/coral-sampler/internal/testutil"
)

func TestPreparePrimes(t *testing.T) {
	primes := PreparePrimes()
	require.Len(t, primes, 1229)
	assert.Equal(t, []int{2, 3, 5, 7, 11, 13}, primes[:6])
	assert.Equal(t, 9973, primes[len(primes)-1])
}

func TestIsPrime(t *testing.T) {
	table := PreparePrimes()

	tests := []struct {
		v    int
		want bool
	}{
		{0, false},
		{1, false},
		{2, true},
		{9, false},
		{9973, true},
		{10007, true},
		{10011, false},
		{99991, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPrime(tt.v, table), "v=%d", tt.v)
	}
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := Run(ctx, Config{Workers: 2, Logger: testutil.NewTestLoggerWithOutput(t)})
	require.NoError(t, err)
	assert.NotZero(t, res.Primes)
	assert.NotZero(t, res.Hashes)
}

func TestRun_InvalidWorkers(t *testing.T) {
	_, err := Run(context.Background(), Config{Workers: 0})
	require.Error(t, err)
}
