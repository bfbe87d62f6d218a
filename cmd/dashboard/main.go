package main

import (
	"log"
	"time"

	config "sticker-sales-api/configs"
	"sticker-sales-api/pkg/handlers"
	"sticker-sales-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()

	// サービスとハンドラーの初期化
	monitoringService := services.NewMonitoringService()
	predictionClient := services.NewPredictionClient(cfg.PredictorURL, time.Duration(cfg.HTTPTimeoutSeconds)*time.Second)
	dashboardService := services.NewDashboardService(predictionClient, cfg.ResultsCSVPath)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// Ginルーターの初期化
	r := gin.Default()

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(cors.Default())

	// ヘルスチェックエンドポイント
	r.GET("/health", handlers.HealthCheck)

	// ダッシュボードAPI
	v1 := r.Group("/api/v1")
	{
		dashboard := v1.Group("/dashboard")
		{
			dashboard.POST("/upload", dashboardHandler.Upload)
			dashboard.GET("/table", dashboardHandler.Table)
			dashboard.GET("/summary", dashboardHandler.Summary)
			dashboard.GET("/series", dashboardHandler.Series)
			dashboard.GET("/filters", dashboardHandler.Filters)
			dashboard.GET("/export", dashboardHandler.Export)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/stats", monitoringHandler.GetStats)
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	log.Printf("Starting Sales Prediction Dashboard on :%s (predictor: %s)", cfg.DashboardPort, cfg.PredictorURL)
	if err := r.Run(":" + cfg.DashboardPort); err != nil {
		log.Fatal("Failed to start dashboard:", err)
	}
}
