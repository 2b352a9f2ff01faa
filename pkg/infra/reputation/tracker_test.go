package reputation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/vigilguard/vigil/pkg/common"
	"github.com/vigilguard/vigil/pkg/infra/cache"
	"github.com/vigilguard/vigil/pkg/infra/reputation"
	"github.com/vigilguard/vigil/pkg/types"
)

func TestMakeFingerprintNormalizes(t *testing.T) {
	client, _ := redismock.NewClientMock()
	tracker := reputation.NewTracker(cache.NewCacheWithClient(client))

	fp := tracker.MakeFingerprint(&types.RequestContext{
		TenantID: " Tenant-A ",
		ClientIP: " 203.0.113.4 ",
		Headers:  map[string][]string{"User-Agent": {" Mozilla/5.0 "}},
	})

	assert.Equal(t, "tenant-a", fp.TenantID)
	assert.Equal(t, "203.0.113.4", fp.IP)
	assert.Equal(t, "mozilla/5.0", fp.UserAgent)

	parsed, err := reputation.NewFromID(fp.ID())
	assert.NoError(t, err)
	assert.Equal(t, fp, *parsed)
}

func TestRecordRequestIncrementsSeen(t *testing.T) {
	client, mock := redismock.NewClientMock()
	tracker := reputation.NewTracker(cache.NewCacheWithClient(client))

	fp := reputation.Fingerprint{TenantID: "t1", IP: "1.2.3.4", UserAgent: "curl"}
	seenKey := fmt.Sprintf("rep:%s:seen", fp.ID())

	mock.ExpectTxPipeline()
	mock.ExpectIncr(seenKey).SetVal(1)
	mock.ExpectExpire(seenKey, time.Hour).SetVal(true)
	mock.ExpectTxPipelineExec()

	err := tracker.RecordRequest(context.Background(), fp, time.Hour)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreBlockedIsConclusive(t *testing.T) {
	client, mock := redismock.NewClientMock()
	tracker := reputation.NewTracker(cache.NewCacheWithClient(client))

	fp := reputation.Fingerprint{TenantID: "t1", IP: "1.2.3.4", UserAgent: "curl"}
	mock.ExpectExists(fmt.Sprintf("rep:%s:blocked", fp.ID())).SetVal(1)

	score, err := tracker.Score(context.Background(), fp)
	assert.NoError(t, err)
	assert.Equal(t, 100.0, score)
}

func TestScoreFromCounters(t *testing.T) {
	client, mock := redismock.NewClientMock()
	tracker := reputation.NewTracker(cache.NewCacheWithClient(client))

	fp := reputation.Fingerprint{TenantID: "t1", IP: "1.2.3.4", UserAgent: "curl"}
	id := fp.ID()

	mock.ExpectExists(fmt.Sprintf("rep:%s:blocked", id)).SetVal(0)
	mock.ExpectGet(fmt.Sprintf("rep:%s:malicious", id)).SetVal("5")
	mock.ExpectGet(fmt.Sprintf("rep:%s:seen", id)).SetVal("20")

	// ratio 0.25 weighted at 80 plus the capped volume term
	score, err := tracker.Score(context.Background(), fp)
	assert.NoError(t, err)
	assert.InDelta(t, 30.0, score, 0.001)
}

func TestScoreUnknownClientIsZero(t *testing.T) {
	client, mock := redismock.NewClientMock()
	tracker := reputation.NewTracker(cache.NewCacheWithClient(client))

	fp := reputation.Fingerprint{TenantID: "t1", IP: "9.9.9.9", UserAgent: "curl"}
	id := fp.ID()

	mock.ExpectExists(fmt.Sprintf("rep:%s:blocked", id)).SetVal(0)
	mock.ExpectGet(fmt.Sprintf("rep:%s:malicious", id)).RedisNil()
	mock.ExpectGet(fmt.Sprintf("rep:%s:seen", id)).RedisNil()

	score, err := tracker.Score(context.Background(), fp)
	assert.NoError(t, err)
	assert.Zero(t, score)
}

func TestScoreMemoizedUntilNewMalice(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cacheInstance := cache.NewCacheWithClient(client)
	tracker := reputation.NewTracker(cacheInstance)

	fp := reputation.Fingerprint{TenantID: "t1", IP: "1.2.3.4", UserAgent: "curl"}
	id := fp.ID()

	mock.ExpectExists(fmt.Sprintf("rep:%s:blocked", id)).SetVal(0)
	mock.ExpectGet(fmt.Sprintf("rep:%s:malicious", id)).SetVal("5")
	mock.ExpectGet(fmt.Sprintf("rep:%s:seen", id)).SetVal("20")

	score, err := tracker.Score(context.Background(), fp)
	assert.NoError(t, err)
	assert.InDelta(t, 30.0, score, 0.001)
	assert.Equal(t, 1, cacheInstance.GetTTLMap(common.ReputationTTLName).Len())

	// no new expectations: the second lookup is served from the score cache
	score, err = tracker.Score(context.Background(), fp)
	assert.NoError(t, err)
	assert.InDelta(t, 30.0, score, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())

	// recording malice drops the cached entry, so the next lookup recomputes
	badKey := fmt.Sprintf("rep:%s:malicious", id)
	mock.ExpectTxPipeline()
	mock.ExpectIncr(badKey).SetVal(6)
	mock.ExpectExpire(badKey, time.Hour).SetVal(true)
	mock.ExpectTxPipelineExec()
	assert.NoError(t, tracker.RecordMalicious(context.Background(), fp, time.Hour))

	mock.ExpectExists(fmt.Sprintf("rep:%s:blocked", id)).SetVal(0)
	mock.ExpectGet(badKey).SetVal("6")
	mock.ExpectGet(fmt.Sprintf("rep:%s:seen", id)).SetVal("20")

	score, err = tracker.Score(context.Background(), fp)
	assert.NoError(t, err)
	assert.InDelta(t, 36.0, score, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockAndIsBlocked(t *testing.T) {
	client, mock := redismock.NewClientMock()
	tracker := reputation.NewTracker(cache.NewCacheWithClient(client))

	fp := reputation.Fingerprint{TenantID: "t1", IP: "1.2.3.4", UserAgent: "curl"}
	blockedKey := fmt.Sprintf("rep:%s:blocked", fp.ID())

	mock.ExpectSet(blockedKey, "1", 10*time.Minute).SetVal("OK")
	assert.NoError(t, tracker.Block(context.Background(), fp, 10*time.Minute))

	mock.ExpectExists(blockedKey).SetVal(1)
	blocked, err := tracker.IsBlocked(context.Background(), fp)
	assert.NoError(t, err)
	assert.True(t, blocked)
}
