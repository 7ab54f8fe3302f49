package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"PipelineRunsTotal", PipelineRunsTotal},
		{"PipelineRunDuration", PipelineRunDuration},
		{"ExtractorIdentifiersTotal", ExtractorIdentifiersTotal},
		{"ExtractorDuplicatesSkipped", ExtractorDuplicatesSkipped},
		{"ResolverCacheHits", ResolverCacheHits},
		{"ResolverCacheMisses", ResolverCacheMisses},
		{"ResolverFetchesTotal", ResolverFetchesTotal},
		{"ResolverFetchLatency", ResolverFetchLatency},
		{"LabelerAddressesCollected", LabelerAddressesCollected},
		{"LabelerCacheHits", LabelerCacheHits},
		{"LabelerProviderLookups", LabelerProviderLookups},
		{"AnalysisTasksTotal", AnalysisTasksTotal},
		{"AnalysisTaskLatency", AnalysisTaskLatency},
		{"AnalysisWorkersBusy", AnalysisWorkersBusy},
		{"StoreWriteFailures", StoreWriteFailures},
		{"ProviderRateLimitWaits", ProviderRateLimitWaits},
		{"EventsPublished", EventsPublished},
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"DBPoolOpen", DBPoolOpen},
		{"DBPoolInUse", DBPoolInUse},
		{"DBPoolIdle", DBPoolIdle},
	}

	for _, v := range vars {
		assert.NotNilf(t, v.val, "%s should not be nil", v.name)
	}
}

func TestMetrics_IncrementNoPanic(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { PipelineRunsTotal.WithLabelValues("ok").Inc() })
	assert.NotPanics(t, func() { ResolverFetchesTotal.WithLabelValues("error").Inc() })
	assert.NotPanics(t, func() { LabelerCacheHits.WithLabelValues("lru").Inc() })
	assert.NotPanics(t, func() { AnalysisTasksTotal.WithLabelValues("ok").Inc() })
	assert.NotPanics(t, func() { StoreWriteFailures.WithLabelValues("detail").Inc() })
	assert.NotPanics(t, func() { ProviderRateLimitWaits.WithLabelValues("okx").Inc() })
	assert.NotPanics(t, func() { EventsPublished.WithLabelValues("ok").Inc() })
	assert.NotPanics(t, func() { ExtractorIdentifiersTotal.Inc() })
	assert.NotPanics(t, func() { ResolverCacheHits.Inc() })
	assert.NotPanics(t, func() { AnalysisWorkersBusy.Set(3) })
	assert.NotPanics(t, func() { PipelineRunDuration.Observe(1.5) })
}
