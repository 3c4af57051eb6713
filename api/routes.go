/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers
 */

package api

import (
	"qareview-service/api/controllers"
	"qareview-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	testCaseController := controllers.NewTestCaseController(
		service.GlobalParser,
		service.GlobalRuleEngine,
		service.GlobalOrchestrator,
		service.GlobalTestCaseStore,
		service.GlobalQuotaLimiter,
	)

	// 测试用例质量管线
	r.Route("/testcases", func(r chi.Router) {
		r.Post("/parse", testCaseController.ParseCSV)
		r.Post("/validate", testCaseController.ValidateAll)
		r.Post("/analyze", testCaseController.Analyze)
		r.Post("/summary", testCaseController.Summarize)
	})

	// 文件级行集合存取
	r.Route("/files", func(r chi.Router) {
		r.Put("/{id}/rows", testCaseController.SaveRows)
		r.Get("/{id}/rows", testCaseController.LoadRows)
		r.Get("/{id}/summary", testCaseController.GetSummary)
	})
}
