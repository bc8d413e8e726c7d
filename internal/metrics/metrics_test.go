package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.CollectAndCount(HTTPRequestDuration)
	RecordHTTPRequest("GET", "/anime/search", 200, 15*time.Millisecond)
	RecordHTTPRequest("GET", "/anime/search", 200, 5*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration), before)
}

func TestRecordVectorSpaceBuild(t *testing.T) {
	RecordVectorSpaceBuild(time.Second, 1234)
	assert.Equal(t, float64(1234), testutil.ToFloat64(VocabularySize))
}

func TestCacheCounters(t *testing.T) {
	hits := testutil.ToFloat64(VectorSpaceCacheHits)
	VectorSpaceCacheHits.Inc()
	assert.Equal(t, hits+1, testutil.ToFloat64(VectorSpaceCacheHits))
}
