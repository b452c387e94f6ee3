package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalder/weather-staging/internal/wx/providers"
)

func TestRunBudgetCoversRetrySchedule(t *testing.T) {
	retry := providers.RetryConfig{MaxAttempts: 3, BaseDelay: 750 * time.Millisecond}

	// Per call: 3 × 30s timeouts plus 0.75s + 1.5s backoff sleeps.
	perCall := 3*30*time.Second + 2250*time.Millisecond

	// 8 locations over 4 workers is 2 batches, plus one batch of slack.
	budget := RunBudget(30*time.Second, retry, 4, 8, 4)
	require.Equal(t, perCall*4*3, budget)
}

func TestRunBudgetSequentialScalesWithRegistry(t *testing.T) {
	retry := providers.RetryConfig{MaxAttempts: 3, BaseDelay: 750 * time.Millisecond}

	sequential := RunBudget(30*time.Second, retry, 4, 8, 1)
	pooled := RunBudget(30*time.Second, retry, 4, 8, 4)
	require.Greater(t, sequential, pooled)

	// Parallelism below 1 is treated as sequential.
	require.Equal(t, sequential, RunBudget(30*time.Second, retry, 4, 8, 0))
}
