package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qareview-service/service/models"
	"qareview-service/service/storage"
	"qareview-service/testutil"
)

func newService(t *testing.T) (*RunCleanupService, *storage.TestCaseStore, *testutil.TestDB) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	store := storage.NewTestCaseStore(tdb.DB)
	return NewRunCleanupService(tdb.DB, store), store, tdb
}

func TestReleaseStaleRuns_释放超时运行(t *testing.T) {
	service, store, tdb := newService(t)

	run := &models.AnalysisRun{FileID: "file-1"}
	require.NoError(t, store.CreateRun(run))
	run.StartedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.UpdateRun(run))

	require.NoError(t, service.ReleaseStaleRuns(context.Background()))

	var got models.AnalysisRun
	require.NoError(t, tdb.DB.First(&got, "id = ?", run.ID).Error)
	assert.Equal(t, models.AnalysisRunStatusError, got.Status)
}

func TestCleanupExpiredRuns_仅删除过期终态记录(t *testing.T) {
	service, store, tdb := newService(t)

	old := &models.AnalysisRun{FileID: "file-1"}
	require.NoError(t, store.CreateRun(old))
	old.Status = models.AnalysisRunStatusCompleted
	require.NoError(t, store.UpdateRun(old))
	// 回拨创建时间使其过期
	require.NoError(t, tdb.DB.Model(old).Update("created_at", time.Now().AddDate(0, 0, -40)).Error)

	recent := &models.AnalysisRun{FileID: "file-2"}
	require.NoError(t, store.CreateRun(recent))
	recent.Status = models.AnalysisRunStatusCompleted
	require.NoError(t, store.UpdateRun(recent))

	running := &models.AnalysisRun{FileID: "file-3"}
	require.NoError(t, store.CreateRun(running))
	require.NoError(t, tdb.DB.Model(running).Update("created_at", time.Now().AddDate(0, 0, -40)).Error)

	deleted, err := service.CleanupExpiredRuns(context.Background(), DefaultRunRetentionDays)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var count int64
	tdb.DB.Model(&models.AnalysisRun{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestStartScheduledCleanup_重复启动报错(t *testing.T) {
	service, _, _ := newService(t)

	require.NoError(t, service.StartScheduledCleanup())
	defer service.StopScheduledCleanup()

	assert.Error(t, service.StartScheduledCleanup())
}
