package main

import (
	"log"
	"net/http"

	config "sticker-sales-api/configs"
	"sticker-sales-api/pkg/booster"
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

	// モデルアーティファクトの読み込み（プロセス起動時に一度だけ）
	regressor := &booster.Booster{}
	if err := regressor.Restore(cfg.ModelPath); err != nil {
		log.Fatalf("FATAL: Failed to restore model from %s: %v", cfg.ModelPath, err)
	}
	log.Printf("✅ モデルを読み込みました: %s（木の数: %d、特徴量数: %d）", cfg.ModelPath, regressor.NumTrees(), regressor.NumFeature())

	// 学習CSVからエンコーディングを導出（起動時に一度だけ、以降は読み取り専用）
	preprocessService := services.NewPreprocessService(cfg.TrainCSVPath)
	if err := preprocessService.Fit(); err != nil {
		log.Fatalf("FATAL: Failed to fit preprocessing from %s: %v", cfg.TrainCSVPath, err)
	}
	log.Printf("✅ エンコーディングを導出しました: %s（特徴量数: %d）", cfg.TrainCSVPath, preprocessService.NumFeatures())

	// 予測履歴の記録（DATABASE_URL設定時のみ有効）
	var historyService *services.HistoryService
	if cfg.DatabaseURL != "" {
		var err error
		historyService, err = services.NewHistoryService(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Failed to initialize HistoryService: %v", err)
			historyService = nil
		} else {
			defer historyService.Close()
		}
	}

	// サービスとハンドラーの初期化
	monitoringService := services.NewMonitoringService()
	predictorService := services.NewPredictorService(preprocessService, regressor, historyService)
	predictHandler := handlers.NewPredictHandler(predictorService)
	adminHandler := handlers.NewAdminHandler(regressor, preprocessService)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// Ginルーターの初期化
	r := gin.Default()

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(cors.Default())

	// 認証ミドルウェア
	authMiddleware := func(apiKey string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if apiKey == "" {
				c.Next()
				return
			}
			providedKey := c.GetHeader("X-API-KEY")
			if providedKey != apiKey {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			c.Next()
		}
	}

	// ヘルスチェックエンドポイント
	r.GET("/health", handlers.HealthCheck)

	// 予測エンドポイント（ダッシュボードが直接叩く素のパス）
	r.POST("/predict", predictHandler.Predict)
	r.POST("/predict_csv", predictHandler.PredictCSV)

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(cfg.APIKey))
	{
		v1.POST("/predict", predictHandler.Predict)
		v1.POST("/predict_csv", predictHandler.PredictCSV)

		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/model-status", adminHandler.GetModelStatus)
			admin.POST("/refit", adminHandler.Refit)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/stats", monitoringHandler.GetStats)
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	log.Printf("Starting Sticker Sales API server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
