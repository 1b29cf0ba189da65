package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weavesync/weavesync/models"
)

func testConfig() PolicyConfig {
	return PolicyConfig{
		MinimumTimeBeforeFirstSubmission: 0,
		MinimumTimeBetweenUploads:        24 * time.Hour,
		MinimumTimeAfterFailure:          15 * time.Minute,
		MaxDailyFailures:                 2,
		MaxObsoleteAttempts:              3,
		MaxTrackedObsoleteIDs:            5,
	}
}

func newTestPolicy(cfg PolicyConfig) *Policy {
	return NewPolicy(cfg, &models.SubmissionState{})
}

func TestPolicy_FirstSubmissionDelay(t *testing.T) {
	cfg := testConfig()
	cfg.MinimumTimeBeforeFirstSubmission = time.Hour
	p := newTestPolicy(cfg)
	hour := time.Hour.Milliseconds()

	// The first tick anchors the delay.
	assert.Equal(t, ActionNone, p.Tick(1000).Action)
	assert.Equal(t, ActionNone, p.Tick(1000+hour-1).Action)
	assert.Equal(t, ActionUpload, p.Tick(1000+hour).Action)
}

func TestPolicy_NormalIntervalBetweenUploads(t *testing.T) {
	p := newTestPolicy(testConfig())
	between := testConfig().MinimumTimeBetweenUploads.Milliseconds()

	assert.Equal(t, ActionUpload, p.Tick(1000).Action)
	p.RecordUploadRequested(1000)
	p.RecordUploadSucceeded(1000, "doc-1")

	assert.Equal(t, ActionNone, p.Tick(1000+between-1).Action)
	assert.Equal(t, ActionUpload, p.Tick(1000+between).Action)
}

func TestPolicy_SoftFailureRetriesSoon(t *testing.T) {
	p := newTestPolicy(testConfig())
	short := testConfig().MinimumTimeAfterFailure.Milliseconds()

	p.RecordUploadRequested(1000)
	p.RecordUploadSoftFailure(2000)

	assert.Equal(t, 1, p.State().CurrentDayFailureCount)
	assert.Equal(t, ActionNone, p.Tick(2000+short-1).Action)
	assert.Equal(t, ActionUpload, p.Tick(2000+short).Action)
}

func TestPolicy_FailureBudgetExhaustionRevertsToNormalInterval(t *testing.T) {
	p := newTestPolicy(testConfig())
	between := testConfig().MinimumTimeBetweenUploads.Milliseconds()
	short := testConfig().MinimumTimeAfterFailure.Milliseconds()

	p.RecordUploadRequested(1000)
	p.RecordUploadSoftFailure(1000)
	// Second failure hits MaxDailyFailures: counter resets, interval reverts.
	p.RecordUploadRequested(2000)
	p.RecordUploadSoftFailure(2000)

	assert.Equal(t, 0, p.State().CurrentDayFailureCount)
	assert.Equal(t, ActionNone, p.Tick(2000+short).Action, "short retry interval no longer applies")
	assert.Equal(t, ActionUpload, p.Tick(2000+between).Action)
}

func TestPolicy_HardFailureDoesNotChargeBudget(t *testing.T) {
	p := newTestPolicy(testConfig())
	between := testConfig().MinimumTimeBetweenUploads.Milliseconds()
	short := testConfig().MinimumTimeAfterFailure.Milliseconds()

	p.RecordUploadRequested(1000)
	p.RecordUploadHardFailure(1000)

	assert.Equal(t, 0, p.State().CurrentDayFailureCount)
	assert.Equal(t, ActionNone, p.Tick(1000+short).Action, "hard failures never retry soon")
	assert.Equal(t, ActionUpload, p.Tick(1000+between).Action)
}

func TestPolicy_SuccessResetsFailureCount(t *testing.T) {
	p := newTestPolicy(testConfig())

	p.RecordUploadRequested(1000)
	p.RecordUploadSoftFailure(1000)
	assert.Equal(t, 1, p.State().CurrentDayFailureCount)

	p.RecordUploadSucceeded(2000, "doc-1")
	assert.Equal(t, 0, p.State().CurrentDayFailureCount)
	assert.Equal(t, "doc-1", p.State().LastSuccessfulID)
}

func TestPolicy_ObsoleteDeletionTakesPriority(t *testing.T) {
	p := newTestPolicy(testConfig())
	p.TrackObsolete("doc-b")
	p.TrackObsolete("doc-a")

	decision := p.Tick(1000)
	assert.Equal(t, ActionDeleteObsolete, decision.Action)
	assert.Equal(t, "doc-a", decision.ObsoleteID, "lexicographically smallest id first")
}

func TestPolicy_ObsoleteOrderIndependentOfInsertion(t *testing.T) {
	first := newTestPolicy(testConfig())
	for _, id := range []string{"c", "a", "b"} {
		first.TrackObsolete(id)
	}
	second := newTestPolicy(testConfig())
	for _, id := range []string{"b", "c", "a"} {
		second.TrackObsolete(id)
	}

	assert.Equal(t, []string{"a", "b", "c"}, first.ObsoleteIDs())
	assert.Equal(t, first.ObsoleteIDs(), second.ObsoleteIDs())
}

func TestPolicy_ObsoleteAttemptsExhaustion(t *testing.T) {
	p := newTestPolicy(testConfig())
	p.TrackObsolete("doc")

	for i := 0; i < testConfig().MaxObsoleteAttempts; i++ {
		assert.Contains(t, p.State().ObsoleteDocs, "doc")
		p.ObsoleteDeleteFailed("doc")
	}
	assert.NotContains(t, p.State().ObsoleteDocs, "doc", "dropped after attempts run out")
}

func TestPolicy_ObsoleteDeleteSucceededRemoves(t *testing.T) {
	p := newTestPolicy(testConfig())
	p.TrackObsolete("doc")
	p.ObsoleteDeleteSucceeded("doc")
	assert.Empty(t, p.State().ObsoleteDocs)
}

func TestPolicy_ObsoleteQueueCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTrackedObsoleteIDs = 3
	p := newTestPolicy(cfg)

	for _, id := range []string{"d", "b", "a", "c"} {
		p.TrackObsolete(id)
	}

	// The retained set is the smallest N ids, independent of arrival order.
	assert.Equal(t, []string{"a", "b", "c"}, p.ObsoleteIDs())
}

func TestPolicy_TickNeverBlocksOnEmptyState(t *testing.T) {
	p := newTestPolicy(testConfig())
	assert.Equal(t, ActionUpload, p.Tick(1).Action)
}
