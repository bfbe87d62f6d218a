package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sticker-sales-api/pkg/models"
	"sticker-sales-api/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

const testDashboardCSV = `date,country,store,product
2017-01-01,Canada,Discount Stickers,Holographic Goose
2017-01-01,Finland,Stickers for Less,Kaggle
2017-01-02,Canada,Discount Stickers,Kaggle
2017-01-02,Italy,Premium Sticker Mart,Kerneler
2017-01-03,Canada,Stickers for Less,Holographic Goose
`

// newDashboardRouter はスタブ予測APIに接続したダッシュボードを構築します。
func newDashboardRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	predictor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("csv")
		if err != nil {
			http.Error(w, "csv field missing", http.StatusBadRequest)
			return
		}
		defer file.Close()

		rows, err := csv.NewReader(file).ReadAll()
		if err != nil {
			http.Error(w, "bad csv", http.StatusBadRequest)
			return
		}

		resp := models.PredictResponse{NumSold: []float64{}, Date: []string{}}
		for i, row := range rows[1:] {
			resp.NumSold = append(resp.NumSold, float64((i+1)*10))
			resp.Date = append(resp.Date, row[0])
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(predictor.Close)

	client := services.NewPredictionClient(predictor.URL, 5*time.Second)
	dashboardService := services.NewDashboardService(client, filepath.Join(t.TempDir(), "predictions_results.csv"))
	dashboardHandler := NewDashboardHandler(dashboardService)

	router := gin.New()
	router.POST("/api/v1/dashboard/upload", dashboardHandler.Upload)
	router.GET("/api/v1/dashboard/table", dashboardHandler.Table)
	router.GET("/api/v1/dashboard/summary", dashboardHandler.Summary)
	router.GET("/api/v1/dashboard/series", dashboardHandler.Series)
	router.GET("/api/v1/dashboard/filters", dashboardHandler.Filters)
	router.GET("/api/v1/dashboard/export", dashboardHandler.Export)
	return router
}

func uploadCSV(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "test.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest("POST", "/api/v1/dashboard/upload", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getJSON(t *testing.T, router *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()

	req, err := http.NewRequest("GET", path, nil)
	if err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	body := make(map[string]json.RawMessage)
	if rec.Code == http.StatusOK {
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestDashboardUploadEndpoint(t *testing.T) {
	router := newDashboardRouter(t)

	w := uploadCSV(t, router, testDashboardCSV)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rows":5`)
	assert.Contains(t, w.Body.String(), `"missing":0`)
}

func TestDashboardUploadMissingFile(t *testing.T) {
	router := newDashboardRouter(t)

	req, err := http.NewRequest("POST", "/api/v1/dashboard/upload", nil)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboardTableCountryFilter(t *testing.T) {
	router := newDashboardRouter(t)
	uploadCSV(t, router, testDashboardCSV)

	// country=Canada で絞り込むと該当行だけが表示される
	rec, body := getJSON(t, router, "/api/v1/dashboard/table?country=Canada")
	assert.Equal(t, http.StatusOK, rec.Code)

	var rows []models.PredictionRow
	assert.NoError(t, json.Unmarshal(body["data"], &rows))
	assert.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "Canada", row.Country)
	}
}

func TestDashboardSummaryEndpoint(t *testing.T) {
	router := newDashboardRouter(t)
	uploadCSV(t, router, testDashboardCSV)

	rec, body := getJSON(t, router, "/api/v1/dashboard/summary")
	assert.Equal(t, http.StatusOK, rec.Code)

	var summary models.DashboardSummary
	assert.NoError(t, json.Unmarshal(body["data"], &summary))
	assert.Equal(t, 5, summary.RowCount)
	assert.Equal(t, 150.0, summary.TotalPredictedSales)
}

func TestDashboardSeriesEndpoint(t *testing.T) {
	router := newDashboardRouter(t)
	uploadCSV(t, router, testDashboardCSV)

	rec, body := getJSON(t, router, "/api/v1/dashboard/series?agg=sum")
	assert.Equal(t, http.StatusOK, rec.Code)

	var series []models.SeriesPoint
	assert.NoError(t, json.Unmarshal(body["data"], &series))
	assert.Len(t, series, 3)
	assert.Equal(t, "2017-01-01", series[0].Date)
	assert.Equal(t, 30.0, series[0].Value)

	// トレンド（7日移動平均）も同時に返る
	var trend []models.SeriesPoint
	assert.NoError(t, json.Unmarshal(body["trend"], &trend))
	assert.Len(t, trend, 3)
}

func TestDashboardSeriesInvalidAgg(t *testing.T) {
	router := newDashboardRouter(t)
	uploadCSV(t, router, testDashboardCSV)

	rec, _ := getJSON(t, router, "/api/v1/dashboard/series?agg=median")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardFiltersEndpoint(t *testing.T) {
	router := newDashboardRouter(t)
	uploadCSV(t, router, testDashboardCSV)

	rec, body := getJSON(t, router, "/api/v1/dashboard/filters")
	assert.Equal(t, http.StatusOK, rec.Code)

	var opts models.FilterOptions
	assert.NoError(t, json.Unmarshal(body["data"], &opts))
	assert.Equal(t, []string{"Canada", "Finland", "Italy"}, opts.Countries)
}

func TestDashboardExportWithoutData(t *testing.T) {
	router := newDashboardRouter(t)

	rec, _ := getJSON(t, router, "/api/v1/dashboard/export?format=csv")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardExportInvalidFormat(t *testing.T) {
	router := newDashboardRouter(t)
	uploadCSV(t, router, testDashboardCSV)

	rec, _ := getJSON(t, router, "/api/v1/dashboard/export?format=pdf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardExportXLSXEndpoint(t *testing.T) {
	router := newDashboardRouter(t)
	uploadCSV(t, router, testDashboardCSV)

	req, err := http.NewRequest("GET", "/api/v1/dashboard/export?format=xlsx", nil)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.Bytes())
}
