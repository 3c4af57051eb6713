/*
 * @module api/controllers/testcase_controller_test
 * @description 测试用例控制器端到端测试，使用假模型调用器与sqlite内存数据库
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 构造请求 -> 执行处理器 -> 断言响应与持久化副作用
 * @rules 限流器注入nil，配额行为由rate_limiter包自行覆盖
 * @dependencies net/http/httptest, github.com/stretchr/testify
 * @refs testcase_controller.go
 */

package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qareview-service/service/ai_review"
	"qareview-service/service/csv_ingest"
	"qareview-service/service/models"
	"qareview-service/service/rule_engine"
	"qareview-service/service/storage"
	"qareview-service/testutil"
)

// stubCaller 按系统提示词返回固定响应的假模型调用器
type stubCaller struct {
	reviewResponse  string
	reviewErr       error
	summaryResponse string
	summaryErr      error
}

func (s *stubCaller) Generate(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	switch systemPrompt {
	case ai_review.SystemPromptBulkReview:
		return s.reviewResponse, s.reviewErr
	case ai_review.SystemPromptModuleSummary:
		return s.summaryResponse, s.summaryErr
	}
	return "", fmt.Errorf("unexpected call")
}

func newTestController(t *testing.T, caller ai_review.Caller) (*TestCaseController, *storage.TestCaseStore) {
	tdb := testutil.NewTestDB()
	t.Cleanup(tdb.Close)

	aiConfig := ai_review.DefaultConfig()
	aiConfig.BatchSize = 12
	aiConfig.BatchDelay = 0
	aiConfig.RewriteDelay = 0
	aiConfig.RetryBaseDelay = 0

	store := storage.NewTestCaseStore(tdb.DB)
	controller := NewTestCaseController(
		csv_ingest.NewParser(csv_ingest.DefaultConfig()),
		rule_engine.NewEngine(rule_engine.DefaultConfig()),
		ai_review.NewOrchestrator(aiConfig, caller),
		store,
		nil,
	)
	return controller, store
}

func newRouter(c *TestCaseController) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/testcases/parse", c.ParseCSV)
	r.Post("/testcases/validate", c.ValidateAll)
	r.Post("/testcases/analyze", c.Analyze)
	r.Post("/testcases/summary", c.Summarize)
	r.Put("/files/{id}/rows", c.SaveRows)
	r.Get("/files/{id}/rows", c.LoadRows)
	r.Get("/files/{id}/summary", c.GetSummary)
	return r
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestParseCSV_原始请求体(t *testing.T) {
	controller, _ := newTestController(t, &stubCaller{})
	router := newRouter(controller)

	csv := "testId,description,expectedResult,priority\nTC001,click button,page opens,P1\n"
	req := httptest.NewRequest(http.MethodPost, "/testcases/parse", strings.NewReader(csv))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	assert.Equal(t, http.StatusOK, resp.Status)

	data, _ := json.Marshal(resp.Data)
	var result models.CSVParseResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "TC001", result.Rows[0].TestID)
}

func TestParseCSV_致命错误返回400状态(t *testing.T) {
	controller, _ := newTestController(t, &stubCaller{})
	router := newRouter(controller)

	csv := "description,expectedResult,priority\nclick button,page opens,P1\n"
	req := httptest.NewRequest(http.MethodPost, "/testcases/parse", strings.NewReader(csv))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestValidateAll_返回标注后的行(t *testing.T) {
	controller, _ := newTestController(t, &stubCaller{})
	router := newRouter(controller)

	body := `{"testCases":[{"testId":"TC001","description":"the login page","expectedResult":"","priority":"P1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/testcases/validate", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	require.Equal(t, http.StatusOK, resp.Status)

	data, _ := json.Marshal(resp.Data)
	var payload struct {
		Rows []models.TestCase `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Len(t, payload.Rows, 1)
	assert.Contains(t, []string(payload.Rows[0].LocalFlags), rule_engine.FlagMissingExpectedResult)
	assert.Contains(t, []string(payload.Rows[0].LocalFlags), rule_engine.FlagNoActionVerb)
}

func TestAnalyze_成功并持久化(t *testing.T) {
	caller := &stubCaller{
		reviewResponse: `[{"testId":"TC001","status":"PASS","score":85,"reason":"ok","confidence":95}]`,
	}
	controller, store := newTestController(t, caller)
	router := newRouter(controller)

	body := `{"fileId":"file-1","testCases":[{"testId":"TC001","description":"click button","expectedResult":"page opens","priority":"P1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/testcases/analyze", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	require.Equal(t, http.StatusOK, resp.Status)

	// 带fileId时结果行持久化
	rows, err := store.LoadRows("file-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.AIStatusPass, rows[0].AIStatus)
}

func TestAnalyze_空行集合拒绝(t *testing.T) {
	controller, _ := newTestController(t, &stubCaller{})
	router := newRouter(controller)

	req := httptest.NewRequest(http.MethodPost, "/testcases/analyze", strings.NewReader(`{"testCases":[]}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestAnalyze_批次失败仍返回200与降级结果(t *testing.T) {
	caller := &stubCaller{reviewErr: fmt.Errorf("simulated failure")}
	controller, _ := newTestController(t, caller)
	router := newRouter(controller)

	body := `{"testCases":[{"testId":"TC001","description":"click button","expectedResult":"page opens","priority":"P1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/testcases/analyze", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	require.Equal(t, http.StatusOK, resp.Status)

	data, _ := json.Marshal(resp.Data)
	var output ai_review.AnalyzeOutput
	require.NoError(t, json.Unmarshal(data, &output))
	require.Len(t, output.Rows, 1)
	assert.Equal(t, models.AIStatusError, output.Rows[0].AIStatus)
}

func TestSummarize_失败时吞掉错误(t *testing.T) {
	caller := &stubCaller{summaryErr: fmt.Errorf("simulated failure")}
	controller, _ := newTestController(t, caller)
	router := newRouter(controller)

	body := `{"testCases":[{"testId":"TC001","description":"click button","expectedResult":"page opens","priority":"P1"}]}`
	req := httptest.NewRequest(http.MethodPost, "/testcases/summary", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Nil(t, resp.Data)
}

func TestSummarize_成功并持久化(t *testing.T) {
	caller := &stubCaller{
		summaryResponse: `{"averageScore":72.5,"rewritePercentage":25,"automationReadiness":"Medium","mainIssues":["vague steps"]}`,
	}
	controller, store := newTestController(t, caller)
	router := newRouter(controller)

	body := `{"fileId":"file-1","testCases":[{"testId":"TC001","description":"click button","expectedResult":"page opens","priority":"P1","aiStatus":"PASS"}]}`
	req := httptest.NewRequest(http.MethodPost, "/testcases/summary", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	require.Equal(t, http.StatusOK, resp.Status)

	summary, err := store.GetSummary("file-1")
	require.NoError(t, err)
	assert.Equal(t, "Medium", summary.AutomationReadiness)
}

func TestFiles_保存与加载行集合(t *testing.T) {
	controller, _ := newTestController(t, &stubCaller{})
	router := newRouter(controller)

	body := `{"testCases":[{"testId":"TC001","description":"click button","expectedResult":"page opens","priority":"P1"}]}`
	req := httptest.NewRequest(http.MethodPut, "/files/file-1/rows", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, decodeResponse(t, w).Status)

	req = httptest.NewRequest(http.MethodGet, "/files/file-1/rows", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	require.Equal(t, http.StatusOK, resp.Status)

	data, _ := json.Marshal(resp.Data)
	var payload struct {
		Rows []models.TestCase `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	require.Len(t, payload.Rows, 1)
	assert.Equal(t, "TC001", payload.Rows[0].TestID)
}

func TestGetSummary_不存在返回404状态(t *testing.T) {
	controller, _ := newTestController(t, &stubCaller{})
	router := newRouter(controller)

	req := httptest.NewRequest(http.MethodGet, "/files/missing/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
