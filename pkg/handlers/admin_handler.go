package handlers

import (
	"log"
	"net/http"

	"sticker-sales-api/pkg/booster"
	"sticker-sales-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler は管理者向け操作のハンドラです。
type AdminHandler struct {
	Regressor  *booster.Booster
	Preprocess *services.PreprocessService
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(regressor *booster.Booster, preprocess *services.PreprocessService) *AdminHandler {
	return &AdminHandler{
		Regressor:  regressor,
		Preprocess: preprocess,
	}
}

// GetModelStatus は読み込み済みモデルとエンコーディングの状態を返します。
func (h *AdminHandler) GetModelStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"model": gin.H{
			"num_trees":    h.Regressor.NumTrees(),
			"num_features": h.Regressor.NumFeature(),
		},
		"encoding": gin.H{
			"fitted":           h.Preprocess.Fitted(),
			"num_features":     h.Preprocess.NumFeatures(),
			"vocabulary_sizes": h.Preprocess.VocabularySizes(),
		},
	})
}

// Refit は学習CSVからエンコーディングを再導出します。学習データを
// 差し替えた後の運用操作を想定しています。
func (h *AdminHandler) Refit(c *gin.Context) {
	if err := h.Preprocess.Fit(); err != nil {
		log.Printf("❌ [管理] エンコーディングの再学習に失敗: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	log.Printf("🔄 [管理] エンコーディングを再学習しました（特徴量数: %d）", h.Preprocess.NumFeatures())
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"num_features": h.Preprocess.NumFeatures(),
	})
}
