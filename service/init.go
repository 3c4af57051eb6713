/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、迁移和管线服务装配
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 应用启动时执行初始化流程
 * @rules 确保所有依赖服务正常启动后才提供API服务；Redis配额限流缺失时降级放行
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs service/storage, service/ai_review, service/rule_engine
 */

package service

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"qareview-service/service/ai_review"
	"qareview-service/service/cleanup"
	"qareview-service/service/csv_ingest"
	"qareview-service/service/models"
	"qareview-service/service/rate_limiter"
	"qareview-service/service/rule_engine"
	"qareview-service/service/storage"
)

var (
	DB *gorm.DB

	GlobalParser            *csv_ingest.Parser
	GlobalRuleEngine        *rule_engine.Engine
	GlobalOrchestrator      *ai_review.Orchestrator
	GlobalTestCaseStore     *storage.TestCaseStore
	GlobalQuotaLimiter      *rate_limiter.DailyQuotaLimiter
	GlobalRunCleanupService *cleanup.RunCleanupService
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "postgres")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	err := DB.AutoMigrate(
		&models.TestCase{},
		&models.FileSummary{},
		&models.AnalysisRun{},
	)
	if err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")
}

// initServices 初始化服务
func initServices() {
	GlobalParser = csv_ingest.NewParser(loadIngestConfig())
	GlobalRuleEngine = rule_engine.NewEngine(loadRuleConfig())
	loadScriptRules(GlobalRuleEngine)

	aiConfig := ai_review.LoadConfig()
	GlobalOrchestrator = ai_review.NewOrchestrator(aiConfig, ai_review.NewGeminiClient(aiConfig))

	GlobalTestCaseStore = storage.NewTestCaseStore(DB)

	// Redis不可用时配额限流降级为放行
	limiter, err := rate_limiter.NewDailyQuotaLimiter()
	if err != nil {
		slog.Warn("每日配额限流器初始化失败，配额检查已禁用", "error", err)
	} else {
		GlobalQuotaLimiter = limiter
	}

	GlobalRunCleanupService = cleanup.NewRunCleanupService(DB, GlobalTestCaseStore)
	if err := GlobalRunCleanupService.StartScheduledCleanup(); err != nil {
		slog.Error("启动运行清理调度器失败", "error", err)
	}

	log.Println("服务初始化完成")
}

// loadIngestConfig 加载接入上限配置
func loadIngestConfig() csv_ingest.Config {
	config := csv_ingest.DefaultConfig()
	if val := os.Getenv("INGEST_MAX_ROWS"); val != "" {
		fmt.Sscanf(val, "%d", &config.MaxRows)
	}
	if val := os.Getenv("INGEST_MAX_FILE_SIZE"); val != "" {
		fmt.Sscanf(val, "%d", &config.MaxFileSize)
	}
	return config
}

// loadRuleConfig 加载规则引擎配置
func loadRuleConfig() rule_engine.Config {
	config := rule_engine.DefaultConfig()
	if val := os.Getenv("RULE_DUPLICATE_THRESHOLD"); val != "" {
		fmt.Sscanf(val, "%f", &config.DuplicateThreshold)
	}
	return config
}

// loadScriptRules 从目录加载用户自定义脚本规则，目录未配置时跳过
func loadScriptRules(engine *rule_engine.Engine) {
	dir := os.Getenv("RULE_SCRIPTS_DIR")
	if dir == "" {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("读取脚本规则目录失败", "dir", dir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rule") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("读取脚本规则失败", "file", entry.Name(), "error", err)
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".rule")
		if err := engine.AddScriptRule(name, string(content)); err != nil {
			slog.Warn("注册脚本规则失败", "file", entry.Name(), "error", err)
			continue
		}
		slog.Info("已加载脚本规则", "rule", name)
	}
}
