/*
 * @module service/storage/testcase_store_test
 * @description 用例存储服务单元测试，使用sqlite内存数据库
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 初始化内存数据库 -> 执行存取 -> 断言持久化结果
 * @rules 每个用例使用独立的内存数据库，互不干扰
 * @dependencies github.com/stretchr/testify, gorm.io/driver/sqlite
 * @refs testcase_store.go
 */

package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"qareview-service/service/models"
	"qareview-service/testutil"
)

func newStore(t *testing.T) (*TestCaseStore, *testutil.TestDB) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)
	return NewTestCaseStore(tdb.DB), tdb
}

func sampleRows(n int) []models.TestCase {
	rows := make([]models.TestCase, n)
	for i := range rows {
		rows[i] = testutil.NewTestCaseRow(
			"TC00"+string(rune('1'+i)),
			"click the button",
			"page opens",
		)
	}
	return rows
}

func TestSaveRows_保存并按行序加载(t *testing.T) {
	store, _ := newStore(t)

	require.NoError(t, store.SaveRows("file-1", sampleRows(3)))

	loaded, err := store.LoadRows("file-1")
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	for i, tc := range loaded {
		assert.Equal(t, i, tc.RowIndex)
		assert.Equal(t, "file-1", tc.FileID)
		assert.NotEmpty(t, tc.ID)
	}
}

func TestSaveRows_整体替换旧行集合(t *testing.T) {
	store, _ := newStore(t)

	require.NoError(t, store.SaveRows("file-1", sampleRows(3)))
	require.NoError(t, store.SaveRows("file-1", sampleRows(2)))

	loaded, err := store.LoadRows("file-1")
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestSaveRows_文件间隔离(t *testing.T) {
	store, _ := newStore(t)

	require.NoError(t, store.SaveRows("file-1", sampleRows(2)))
	require.NoError(t, store.SaveRows("file-2", sampleRows(3)))
	require.NoError(t, store.SaveRows("file-1", sampleRows(1)))

	loaded, err := store.LoadRows("file-2")
	require.NoError(t, err)
	assert.Len(t, loaded, 3)
}

func TestSaveRows_空fileID拒绝(t *testing.T) {
	store, _ := newStore(t)
	assert.Error(t, store.SaveRows("", sampleRows(1)))
}

func TestLoadRows_不存在的文件返回空集合(t *testing.T) {
	store, _ := newStore(t)

	loaded, err := store.LoadRows("missing")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSaveSummary_创建与覆盖(t *testing.T) {
	store, _ := newStore(t)

	summary := &models.AIModuleSummary{
		AverageScore:        72.5,
		RewritePercentage:   25,
		AutomationReadiness: "Medium",
		MainIssues:          []string{"vague steps"},
	}
	require.NoError(t, store.SaveSummary("file-1", summary))

	got, err := store.GetSummary("file-1")
	require.NoError(t, err)
	assert.Equal(t, 72.5, got.AverageScore)
	assert.Equal(t, "Medium", got.AutomationReadiness)

	// 二次保存覆盖而非新增
	summary.AutomationReadiness = "High"
	require.NoError(t, store.SaveSummary("file-1", summary))

	got, err = store.GetSummary("file-1")
	require.NoError(t, err)
	assert.Equal(t, "High", got.AutomationReadiness)
}

func TestGetSummary_不存在返回ErrRecordNotFound(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.GetSummary("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAnalysisRun_创建与更新(t *testing.T) {
	store, _ := newStore(t)

	run := &models.AnalysisRun{FileID: "file-1", TotalRows: 25}
	require.NoError(t, store.CreateRun(run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.AnalysisRunStatusAnalyzing, run.Status)

	run.Status = models.AnalysisRunStatusCompleted
	run.CompletedBatches = 3
	require.NoError(t, store.UpdateRun(run))

	var got models.AnalysisRun
	require.NoError(t, store.db.First(&got, "id = ?", run.ID).Error)
	assert.Equal(t, models.AnalysisRunStatusCompleted, got.Status)
	assert.Equal(t, 3, got.CompletedBatches)
}

func TestReleaseStaleRuns(t *testing.T) {
	store, _ := newStore(t)

	stale := &models.AnalysisRun{FileID: "file-1"}
	require.NoError(t, store.CreateRun(stale))
	stale.StartedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.UpdateRun(stale))

	fresh := &models.AnalysisRun{FileID: "file-2"}
	require.NoError(t, store.CreateRun(fresh))

	done := &models.AnalysisRun{FileID: "file-3"}
	require.NoError(t, store.CreateRun(done))
	done.Status = models.AnalysisRunStatusCompleted
	done.StartedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.UpdateRun(done))

	released, err := store.ReleaseStaleRuns(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	var got models.AnalysisRun
	require.NoError(t, store.db.First(&got, "id = ?", stale.ID).Error)
	assert.Equal(t, models.AnalysisRunStatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "abandoned")
	assert.NotNil(t, got.FinishedAt)

	// 未超时与已完成的运行不受影响
	var gotFresh models.AnalysisRun
	require.NoError(t, store.db.First(&gotFresh, "id = ?", fresh.ID).Error)
	assert.Equal(t, models.AnalysisRunStatusAnalyzing, gotFresh.Status)
}
