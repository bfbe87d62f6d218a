package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"sticker-sales-api/pkg/models"
)

// PredictionClient calls the predictor service over HTTP. Failures are
// classified (transport, non-200 status, undecodable body) instead of being
// flattened into display strings, so callers can decide what to surface.
type PredictionClient struct {
	baseURL string
	client  *http.Client
}

// NewPredictionClient creates a new PredictionClient. timeout bounds each
// call; there are no retries.
func NewPredictionClient(baseURL string, timeout time.Duration) *PredictionClient {
	return &PredictionClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Predict submits records as JSON to POST /predict.
func (c *PredictionClient) Predict(records []models.SalesRecord) (*models.PredictResponse, error) {
	body, err := json.Marshal(models.PredictRequest{Data: records})
	if err != nil {
		return nil, WrapError(ErrKindEncoding, err, "リクエストのエンコードに失敗")
	}

	resp, err := c.client.Post(fmt.Sprintf("%s/predict", c.baseURL), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(ErrKindTransport, err, "予測APIへの接続に失敗: %s", c.baseURL)
	}
	defer resp.Body.Close()

	return c.decode(resp)
}

// PredictCSV uploads CSV bytes as the multipart form field "csv" to
// POST /predict_csv.
func (c *PredictionClient) PredictCSV(filename string, csvData []byte) (*models.PredictResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("csv", filename)
	if err != nil {
		return nil, WrapError(ErrKindEncoding, err, "マルチパートフォームの作成に失敗")
	}
	if _, err := part.Write(csvData); err != nil {
		return nil, WrapError(ErrKindEncoding, err, "CSVデータの書き込みに失敗")
	}
	if err := w.Close(); err != nil {
		return nil, WrapError(ErrKindEncoding, err, "マルチパートフォームの終端に失敗")
	}

	resp, err := c.client.Post(fmt.Sprintf("%s/predict_csv", c.baseURL), w.FormDataContentType(), &buf)
	if err != nil {
		return nil, WrapError(ErrKindTransport, err, "予測APIへの接続に失敗: %s", c.baseURL)
	}
	defer resp.Body.Close()

	return c.decode(resp)
}

// decode reads a predictor response. Non-200 statuses carry the body text
// verbatim so the UI can show the upstream failure unchanged.
func (c *PredictionClient) decode(resp *http.Response) (*models.PredictResponse, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(ErrKindTransport, err, "レスポンス本文の読み取りに失敗")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Kind:    ErrKindHTTPStatus,
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(body)),
		}
	}

	var out models.PredictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, WrapError(ErrKindDecode, err, "レスポンスJSONの解析に失敗")
	}

	return &out, nil
}
