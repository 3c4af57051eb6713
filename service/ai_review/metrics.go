/*
 * @module service/ai_review/metrics
 * @description AI评审管线Prometheus指标，随 /metrics 端点暴露
 * @architecture 分层架构 - 可观测层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @dependencies github.com/prometheus/client_golang/prometheus
 * @refs orchestrator.go, client.go
 */

package ai_review

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_review_batches_total",
		Help: "提交给主模型的评审批次总数",
	})

	batchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_review_batch_failures_total",
		Help: "重试耗尽或解析失败后降级为ERROR的批次总数",
	})

	retryAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_review_retry_attempts_total",
		Help: "限流或服务端错误触发的重试次数",
	})

	rewritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_review_rewrites_total",
		Help: "低置信度触发的改写调用总数",
	})

	rewriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ai_review_rewrite_failures_total",
		Help: "被记录并跳过的改写调用失败总数",
	})
)
