package services

import (
	"log"
	"time"

	"sticker-sales-api/pkg/booster"
	"sticker-sales-api/pkg/models"
)

// PredictorService 学習済みモデルと前処理を束ねて予測を行うサービス
type PredictorService struct {
	preprocess *PreprocessService
	regressor  booster.Interface
	history    *HistoryService
}

// NewPredictorService creates a new PredictorService. The history recorder is
// optional and may be nil.
func NewPredictorService(preprocess *PreprocessService, regressor booster.Interface, history *HistoryService) *PredictorService {
	return &PredictorService{
		preprocess: preprocess,
		regressor:  regressor,
		history:    history,
	}
}

// Predict runs the full inference pipeline for a batch of records: encode to
// the training-time feature layout, invoke the model, pair predictions with
// the submitted dates. Output order and length match the input exactly; an
// empty batch yields empty slices, not an error. source tags the request
// origin ("json" or "csv") for the history recorder.
func (s *PredictorService) Predict(records []models.SalesRecord, source string) (*models.PredictResponse, error) {
	start := time.Now()

	resp := &models.PredictResponse{
		NumSold: make([]float64, 0, len(records)),
		Date:    make([]string, 0, len(records)),
	}
	if len(records) == 0 {
		return resp, nil
	}

	features, err := s.preprocess.Transform(records)
	if err != nil {
		return nil, err
	}

	predictions, err := s.regressor.Predict(features)
	if err != nil {
		return nil, WrapError(ErrKindEncoding, err, "モデル推論に失敗しました")
	}

	// 不変条件：予測数 == 入力行数
	if len(predictions) != len(records) {
		return nil, NewError(ErrKindRowCount, "予測数(%d)が入力行数(%d)と一致しません", len(predictions), len(records))
	}

	for i, rec := range records {
		resp.NumSold = append(resp.NumSold, float64(predictions[i]))
		resp.Date = append(resp.Date, rec.Date)
	}

	if s.history != nil {
		if err := s.history.Record(source, records, resp.NumSold, time.Since(start)); err != nil {
			// 履歴は診断用の補助機能なので失敗してもリクエストは成功させる
			log.Printf("⚠️ 予測履歴の保存に失敗: %v", err)
		}
	}

	return resp, nil
}
