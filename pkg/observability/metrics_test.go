package observability_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/kiln/pkg/domain"
	"github.com/aretw0/kiln/pkg/observability"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	hooks := metrics.Hooks()
	ctx := context.Background()

	hooks.OnNodeResolved(ctx, &domain.FiringEvent{
		Node:     "greeting",
		Duration: 12 * time.Millisecond,
	})
	hooks.OnNodeResolved(ctx, &domain.FiringEvent{
		Node:     "greeting",
		Duration: 8 * time.Millisecond,
	})
	hooks.OnNodeFailed(ctx, &domain.FiringEvent{
		Node:     "session",
		Duration: 3 * time.Millisecond,
	})
	hooks.OnFinalize(ctx, &domain.FinalizeEvent{Outcome: domain.OutcomeSuccess})
	hooks.OnFinalize(ctx, &domain.FinalizeEvent{
		Outcome: domain.OutcomeFailure,
		CleanupErr: &domain.CleanupError{
			Outcome: domain.OutcomeFailure,
			Failures: []domain.CleanupFailure{
				{Node: "conn", Err: errors.New("closed")},
				{Node: "lease", Err: errors.New("expired")},
			},
		},
	})

	expected := `
		# HELP kiln_node_resolutions_total Node computations by result. Memoized lookups are not counted.
		# TYPE kiln_node_resolutions_total counter
		kiln_node_resolutions_total{node="greeting",result="success"} 2
		kiln_node_resolutions_total{node="session",result="failure"} 1
	`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "kiln_node_resolutions_total"))

	expectedFinalize := `
		# HELP kiln_finalizations_total Kiln finalizations by outcome.
		# TYPE kiln_finalizations_total counter
		kiln_finalizations_total{outcome="failure"} 1
		kiln_finalizations_total{outcome="success"} 1
	`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expectedFinalize), "kiln_finalizations_total"))

	expectedCleanup := `
		# HELP kiln_cleanup_failures_total Cleanup actions that failed during finalize.
		# TYPE kiln_cleanup_failures_total counter
		kiln_cleanup_failures_total 2
	`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expectedCleanup), "kiln_cleanup_failures_total"))
}
