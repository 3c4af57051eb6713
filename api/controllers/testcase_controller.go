/*
 * @module api/controllers/testcase_controller
 * @description 测试用例质量管线控制器，提供解析、校验、AI分析、汇总和行集合存取接口
 * @architecture 分层架构 - 控制器层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow HTTP请求处理流程
 * @rules 仅接入致命错误阻断流程；批次失败和汇总失败以部分结果形式返回
 * @dependencies qareview-service/service, github.com/go-chi/chi/v5
 * @refs api/routes.go
 */

package controllers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"

	"qareview-service/service/ai_review"
	"qareview-service/service/csv_ingest"
	"qareview-service/service/models"
	"qareview-service/service/rate_limiter"
	"qareview-service/service/rule_engine"
	"qareview-service/service/storage"
)

// 匿名用户的配额主体标识
const anonymousUser = "anonymous"

// TestCaseController 测试用例质量管线控制器
type TestCaseController struct {
	parser       *csv_ingest.Parser
	engine       *rule_engine.Engine
	orchestrator *ai_review.Orchestrator
	store        *storage.TestCaseStore
	limiter      *rate_limiter.DailyQuotaLimiter // 可为nil，表示配额检查禁用
}

// NewTestCaseController 创建测试用例控制器实例
func NewTestCaseController(
	parser *csv_ingest.Parser,
	engine *rule_engine.Engine,
	orchestrator *ai_review.Orchestrator,
	store *storage.TestCaseStore,
	limiter *rate_limiter.DailyQuotaLimiter,
) *TestCaseController {
	return &TestCaseController{
		parser:       parser,
		engine:       engine,
		orchestrator: orchestrator,
		store:        store,
		limiter:      limiter,
	}
}

// RowsRequest 携带行集合的通用请求体
type RowsRequest struct {
	TestCases []models.TestCase `json:"testCases"`
	FileID    string            `json:"fileId,omitempty"`
	UserID    string            `json:"userId,omitempty"`
}

// ParseCSV 解析CSV文件
// @Summary 解析CSV测试用例文件
// @Description 接收CSV内容（multipart的file字段或原始请求体），返回归一化行集合与诊断信息
// @Tags 测试用例
// @Accept text/csv
// @Produce json
// @Success 200 {object} APIResponse{data=models.CSVParseResult} "解析成功"
// @Failure 400 {object} APIResponse{data=models.CSVParseResult} "接入致命错误"
// @Router /testcases/parse [post]
func (c *TestCaseController) ParseCSV(w http.ResponseWriter, r *http.Request) {
	content, err := readCSVContent(r)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "读取上传内容失败",
		})
		return
	}

	result := c.parser.Parse(content)
	if result.HasFatalError() {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "CSV解析失败",
			Data:   result,
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "CSV解析成功",
		Data:   result,
	})
}

// ValidateAll 执行本地规则校验
// @Summary 对行集合执行本地规则校验
// @Description 同步执行必填检查、动作动词检查和近重复检测，返回标注localFlags后的行集合
// @Tags 测试用例
// @Accept json
// @Produce json
// @Param request body RowsRequest true "行集合"
// @Success 200 {object} APIResponse "校验成功"
// @Router /testcases/validate [post]
func (c *TestCaseController) ValidateAll(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	validated := c.engine.ValidateAll(req.TestCases)

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "本地规则校验完成",
		Data:   map[string]interface{}{"rows": validated},
	})
}

// Analyze 执行AI批量评审
// @Summary 对行集合执行AI批量评审
// @Description 按批提交AI评审，低置信度结果触发改写；单批失败不影响其余批次
// @Tags 测试用例
// @Accept json
// @Produce json
// @Param request body RowsRequest true "行集合"
// @Success 200 {object} APIResponse{data=ai_review.AnalyzeOutput} "分析完成"
// @Failure 429 {object} APIResponse "超出每日配额"
// @Router /testcases/analyze [post]
func (c *TestCaseController) Analyze(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	if len(req.TestCases) == 0 {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "没有可分析的测试用例",
		})
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = anonymousUser
	}

	// 每日配额检查，限流器缺失时放行
	if c.limiter != nil {
		quota, err := c.limiter.CheckQuota(r.Context(), userID, len(req.TestCases))
		if err != nil {
			slog.Warn("配额检查失败，降级放行", "user", userID, "error", err)
		} else if !quota.Allowed {
			render.JSON(w, r, APIResponse{
				Status: http.StatusTooManyRequests,
				Msg:    quota.Message,
				Data:   quota,
			})
			return
		}
	}

	// 分析运行簿记，仅在给定fileId时持久化
	var run *models.AnalysisRun
	if req.FileID != "" && c.store != nil {
		run = &models.AnalysisRun{FileID: req.FileID, TotalRows: len(req.TestCases)}
		if err := c.store.CreateRun(run); err != nil {
			slog.Error("创建分析运行记录失败", "fileId", req.FileID, "error", err)
			run = nil
		}
	}

	progress := func(p ai_review.Progress) {
		if run == nil {
			return
		}
		run.TotalBatches = p.TotalBatches
		run.CompletedBatches = p.BatchIndex
		if err := c.store.UpdateRun(run); err != nil {
			slog.Warn("更新分析进度失败", "runId", run.ID, "error", err)
		}
	}

	output, err := c.orchestrator.AnalyzeBatches(r.Context(), req.TestCases, progress)
	if err != nil {
		if run != nil {
			c.finishRun(run, models.AnalysisRunStatusError, err.Error(), nil)
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "分析被中断",
		})
		return
	}

	if c.limiter != nil {
		if err := c.limiter.RecordUsage(r.Context(), userID, 1, len(req.TestCases)); err != nil {
			slog.Warn("记录配额用量失败", "user", userID, "error", err)
		}
	}

	if req.FileID != "" && c.store != nil {
		if err := c.store.SaveRows(req.FileID, output.Rows); err != nil {
			slog.Error("保存分析结果失败", "fileId", req.FileID, "error", err)
		}
	}
	if run != nil {
		c.finishRun(run, models.AnalysisRunStatusCompleted, "", output)
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "分析完成",
		Data:   output,
	})
}

// finishRun 收尾分析运行记录
func (c *TestCaseController) finishRun(run *models.AnalysisRun, status, errMsg string, output *ai_review.AnalyzeOutput) {
	now := time.Now()
	run.Status = status
	run.ErrorMessage = errMsg
	run.FinishedAt = &now
	if output != nil {
		run.RewriteCount = len(output.Rewrites)
		failed := 0
		for _, result := range output.Results {
			if result.Status == models.AIStatusError {
				failed++
			}
		}
		// 以批次大小换算失败批次数仅用于展示，结果集本身已携带行级状态
		run.FailedBatches = 0
		if failed > 0 && run.TotalBatches > 0 && run.TotalRows > 0 {
			batchSize := (run.TotalRows + run.TotalBatches - 1) / run.TotalBatches
			run.FailedBatches = (failed + batchSize - 1) / batchSize
		}
	}
	if err := c.store.UpdateRun(run); err != nil {
		slog.Error("更新分析运行记录失败", "runId", run.ID, "error", err)
	}
}

// Summarize 生成模块质量汇总
// @Summary 对评审后的行集合生成模块质量汇总
// @Description 单次AI调用产出质量汇总；汇总失败不视为错误，返回空数据
// @Tags 测试用例
// @Accept json
// @Produce json
// @Param request body RowsRequest true "行集合"
// @Success 200 {object} APIResponse{data=models.AIModuleSummary} "汇总完成"
// @Router /testcases/summary [post]
func (c *TestCaseController) Summarize(w http.ResponseWriter, r *http.Request) {
	var req RowsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	summary, err := c.orchestrator.Summarize(r.Context(), req.TestCases)
	if err != nil {
		// 汇总尽力而为，失败时吞掉错误返回空数据
		slog.Warn("模块汇总失败", "error", err)
		render.JSON(w, r, APIResponse{
			Status: http.StatusOK,
			Msg:    "汇总暂不可用",
		})
		return
	}

	if req.FileID != "" && c.store != nil {
		if err := c.store.SaveSummary(req.FileID, summary); err != nil {
			slog.Error("保存汇总失败", "fileId", req.FileID, "error", err)
		}
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "汇总完成",
		Data:   summary,
	})
}

// SaveRows 保存行集合
// @Summary 以文件为单位保存行集合
// @Tags 文件
// @Accept json
// @Produce json
// @Param id path string true "文件ID"
// @Param request body RowsRequest true "行集合"
// @Success 200 {object} APIResponse "保存成功"
// @Router /files/{id}/rows [put]
func (c *TestCaseController) SaveRows(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var req RowsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	if err := c.store.SaveRows(fileID, req.TestCases); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "保存行集合失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "保存行集合成功",
	})
}

// LoadRows 加载行集合
// @Summary 按文件加载行集合
// @Tags 文件
// @Produce json
// @Param id path string true "文件ID"
// @Success 200 {object} APIResponse "加载成功"
// @Router /files/{id}/rows [get]
func (c *TestCaseController) LoadRows(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	rows, err := c.store.LoadRows(fileID)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "加载行集合失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "加载行集合成功",
		Data:   map[string]interface{}{"rows": rows},
	})
}

// GetSummary 获取文件级汇总
// @Summary 获取已持久化的文件级汇总
// @Tags 文件
// @Produce json
// @Param id path string true "文件ID"
// @Success 200 {object} APIResponse{data=models.FileSummary} "获取成功"
// @Failure 404 {object} APIResponse "汇总不存在"
// @Router /files/{id}/summary [get]
func (c *TestCaseController) GetSummary(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	summary, err := c.store.GetSummary(fileID)
	if err == gorm.ErrRecordNotFound {
		render.JSON(w, r, APIResponse{
			Status: http.StatusNotFound,
			Msg:    "汇总不存在",
		})
		return
	}
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取汇总失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取汇总成功",
		Data:   summary,
	})
}

// readCSVContent 读取上传的CSV内容，优先multipart的file字段，否则读取原始请求体
func readCSVContent(r *http.Request) ([]byte, error) {
	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(r.Body)
}
