package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"sticker-sales-api/pkg/models"
	"sticker-sales-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// DashboardHandler ダッシュボードAPIのHTTPハンドラー
type DashboardHandler struct {
	dashboardService *services.DashboardService
}

// NewDashboardHandler 新しいDashboardHandlerを作成
func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

// Upload CSVまたはExcelをアップロードして予測APIに送信し、結合結果を保持
// POST /api/v1/dashboard/upload  multipart form field "file"
func (dh *DashboardHandler) Upload(c *gin.Context) {
	c.Request.ParseMultipartForm(10 << 20) // 10MB limit

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "ファイルの取得に失敗しました。CSVファイルをアップロードしてください。",
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "ファイルの読み取りに失敗しました。",
		})
		return
	}

	total, missing, err := dh.dashboardService.Upload(fileHeader.Filename, data)
	if err != nil {
		log.Printf("❌ [ダッシュボード] アップロード処理に失敗: %v", err)
		c.JSON(statusForError(err), gin.H{
			"success": false,
			"error":   upstreamMessage(err),
		})
		return
	}

	// 元のダッシュボードに合わせ、予測結果CSVを即座に書き出す
	resultsPath, err := dh.dashboardService.SaveResultsCSV()
	if err != nil {
		log.Printf("⚠️ [ダッシュボード] 結果CSVの保存に失敗: %v", err)
		resultsPath = ""
	}

	if missing > 0 {
		log.Printf("⚠️ [ダッシュボード] 予測数と行数が一致せず、%d行を欠損として埋めました", missing)
	}
	log.Printf("📊 [ダッシュボード] %s から%d行を取り込みました", fileHeader.Filename, total)

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"rows":         total,
		"missing":      missing,
		"results_path": resultsPath,
	})
}

// Table フィルタ適用済みの予測テーブルを返す
// GET /api/v1/dashboard/table
func (dh *DashboardHandler) Table(c *gin.Context) {
	filter, ok := dh.bindFilter(c)
	if !ok {
		return
	}

	rows := dh.dashboardService.Rows(filter)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rows,
		"count":   len(rows),
	})
}

// Summary KPIカード用の集計値を返す
// GET /api/v1/dashboard/summary
func (dh *DashboardHandler) Summary(c *gin.Context) {
	filter, ok := dh.bindFilter(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    dh.dashboardService.Summary(filter),
	})
}

// Series 日別の予測売上時系列（sum/mean）とトレンドを返す
// GET /api/v1/dashboard/series?agg=sum|mean
func (dh *DashboardHandler) Series(c *gin.Context) {
	filter, ok := dh.bindFilter(c)
	if !ok {
		return
	}

	series, err := dh.dashboardService.Series(filter, c.Query("agg"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}
	trend, err := dh.dashboardService.Trend(filter)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    series,
		"trend":   trend,
	})
}

// Filters 絞り込みUIに提示する選択肢を返す
// GET /api/v1/dashboard/filters
func (dh *DashboardHandler) Filters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    dh.dashboardService.Options(),
	})
}

// Export 予測テーブルをCSVまたはExcelとしてダウンロード
// GET /api/v1/dashboard/export?format=csv|xlsx
func (dh *DashboardHandler) Export(c *gin.Context) {
	if !dh.dashboardService.HasData() {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "エクスポートできる予測結果がありません。先にCSVをアップロードしてください。",
		})
		return
	}

	format := c.DefaultQuery("format", "csv")
	switch format {
	case "csv":
		path, err := dh.dashboardService.SaveResultsCSV()
		if err != nil {
			c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.FileAttachment(path, "predictions_results.csv")
	case "xlsx":
		filter, ok := dh.bindFilter(c)
		if !ok {
			return
		}
		data, err := dh.dashboardService.ExportXLSX(filter)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="predictions_results.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   fmt.Sprintf("無効なフォーマットです: %s。'csv' または 'xlsx' を指定してください。", format),
		})
	}
}

// bindFilter クエリパラメータから絞り込み条件を取得
func (dh *DashboardHandler) bindFilter(c *gin.Context) (models.DashboardFilter, bool) {
	var filter models.DashboardFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "絞り込み条件の形式が正しくありません: " + err.Error(),
		})
		return filter, false
	}
	return filter, true
}

// upstreamMessage 上流サービスの失敗はステータスと本文をそのまま表示する
func upstreamMessage(err error) string {
	var e *services.Error
	if services.AsError(err, &e) && e.Kind == services.ErrKindHTTPStatus {
		return fmt.Sprintf("Error: %d - %s", e.Status, e.Message)
	}
	return err.Error()
}
