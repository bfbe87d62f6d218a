package handlers

import (
	"io"
	"log"
	"net/http"

	"sticker-sales-api/pkg/models"
	"sticker-sales-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// PredictHandler 予測APIのHTTPハンドラー
type PredictHandler struct {
	predictorService *services.PredictorService
}

// NewPredictHandler 新しいPredictHandlerを作成
func NewPredictHandler(predictorService *services.PredictorService) *PredictHandler {
	return &PredictHandler{
		predictorService: predictorService,
	}
}

// HealthCheck ヘルスチェックエンドポイント
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "Sticker Sales API",
	})
}

// Predict 単一または複数レコードのJSON予測リクエストを処理
// POST /predict  {"data": [{"date","country","store","product"}, ...]}
func (ph *PredictHandler) Predict(c *gin.Context) {
	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの形式が正しくありません: " + err.Error(),
		})
		return
	}

	resp, err := ph.predictorService.Predict(req.Data, "json")
	if err != nil {
		log.Printf("❌ [予測] JSONリクエストの処理に失敗: %v", err)
		c.JSON(statusForError(err), gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	log.Printf("📊 [予測] %d件のレコードを処理しました", len(req.Data))
	c.JSON(http.StatusOK, resp)
}

// PredictCSV CSVファイルのバッチ予測リクエストを処理
// POST /predict_csv  multipart form field "csv" = CSVファイル
func (ph *PredictHandler) PredictCSV(c *gin.Context) {
	c.Request.ParseMultipartForm(10 << 20) // 10MB limit

	// 正規のフィールド名は "csv"。旧ダッシュボードの "file" も受け付ける
	file, fileHeader, err := c.Request.FormFile("csv")
	if err != nil {
		file, fileHeader, err = c.Request.FormFile("file")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "CSVファイルの取得に失敗しました。フォームフィールド 'csv' を確認してください。",
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "CSVファイルの読み取りに失敗しました。",
		})
		return
	}

	records, err := services.ParseSalesCSV(data)
	if err != nil {
		c.JSON(statusForError(err), gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	// ヘッダーのみ（0データ行）のCSVは空の結果を返す（エラーにしない）
	resp, err := ph.predictorService.Predict(records, "csv")
	if err != nil {
		log.Printf("❌ [予測] CSVリクエストの処理に失敗: %v", err)
		c.JSON(statusForError(err), gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	log.Printf("📊 [予測] CSV %s から%d行を処理しました", fileHeader.Filename, len(records))
	c.JSON(http.StatusOK, resp)
}
