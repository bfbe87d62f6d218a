package services

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sticker-sales-api/pkg/models"

	"github.com/stretchr/testify/assert"
)

const testUploadCSV = `date,country,store,product
2017-01-01,Canada,Discount Stickers,Holographic Goose
2017-01-01,Finland,Stickers for Less,Kaggle
2017-01-02,Canada,Discount Stickers,Kaggle
2017-01-02,Italy,Premium Sticker Mart,Kerneler
2017-01-03,Canada,Stickers for Less,Holographic Goose
`

// stubPredictor は行数分の連番予測値を返すテスト用の予測APIです。
func stubPredictor(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
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
}

func newTestDashboard(t *testing.T, predictorURL string) *DashboardService {
	t.Helper()

	client := NewPredictionClient(predictorURL, 5*time.Second)
	return NewDashboardService(client, filepath.Join(t.TempDir(), "predictions_results.csv"))
}

func TestDashboardUpload(t *testing.T) {
	srv := stubPredictor(t)
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)

	total, missing, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, 0, missing)
	assert.True(t, ds.HasData())
}

func TestDashboardFilterByCountry(t *testing.T) {
	srv := stubPredictor(t)
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)
	_, _, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.NoError(t, err)

	// country=Canada で絞り込むと該当3行のみになる
	rows := ds.Rows(models.DashboardFilter{Country: "Canada"})
	assert.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, "Canada", row.Country)
	}
}

func TestDashboardFilterByDateRange(t *testing.T) {
	srv := stubPredictor(t)
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)
	_, _, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.NoError(t, err)

	rows := ds.Rows(models.DashboardFilter{StartDate: "2017-01-02", EndDate: "2017-01-02"})
	assert.Len(t, rows, 2)
}

func TestDashboardSeriesSumAndMean(t *testing.T) {
	srv := stubPredictor(t)
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)
	_, _, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.NoError(t, err)

	// 予測値は行順に 10,20,30,40,50
	sum, err := ds.Series(models.DashboardFilter{}, "sum")
	assert.NoError(t, err)
	assert.Equal(t, []models.SeriesPoint{
		{Date: "2017-01-01", Value: 30},
		{Date: "2017-01-02", Value: 70},
		{Date: "2017-01-03", Value: 50},
	}, sum)

	mean, err := ds.Series(models.DashboardFilter{}, "mean")
	assert.NoError(t, err)
	assert.Equal(t, 15.0, mean[0].Value)
	assert.Equal(t, 35.0, mean[1].Value)

	_, err = ds.Series(models.DashboardFilter{}, "median")
	assert.Error(t, err)
}

func TestDashboardTrend(t *testing.T) {
	srv := stubPredictor(t)
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)
	_, _, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.NoError(t, err)

	trend, err := ds.Trend(models.DashboardFilter{})
	assert.NoError(t, err)
	assert.Len(t, trend, 3)
	// 移動平均: 30, (30+70)/2, (30+70+50)/3
	assert.InDelta(t, 30.0, trend[0].Value, 1e-9)
	assert.InDelta(t, 50.0, trend[1].Value, 1e-9)
	assert.InDelta(t, 50.0, trend[2].Value, 1e-9)
}

func TestDashboardSummary(t *testing.T) {
	srv := stubPredictor(t)
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)
	_, _, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.NoError(t, err)

	summary := ds.Summary(models.DashboardFilter{})
	assert.Equal(t, 5, summary.RowCount)
	assert.Equal(t, 150.0, summary.TotalPredictedSales)
	assert.Equal(t, 50.0, summary.AverageDailySales)
	// Discount Stickers: 10+30=40, Stickers for Less: 20+50=70, Premium: 40
	assert.Equal(t, "Stickers for Less", summary.TopStore)
	assert.Equal(t, 70.0, summary.TopStoreSales)
}

func TestDashboardOptions(t *testing.T) {
	srv := stubPredictor(t)
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)
	_, _, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.NoError(t, err)

	opts := ds.Options()
	assert.Equal(t, []string{"Canada", "Finland", "Italy"}, opts.Countries)
	assert.Equal(t, "2017-01-01", opts.MinDate)
	assert.Equal(t, "2017-01-03", opts.MaxDate)
}

func TestDashboardRowCountMismatch(t *testing.T) {
	// 予測APIが入力より少ない予測値を返しても中断せず欠損として埋める
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.PredictResponse{
			NumSold: []float64{10, 20},
			Date:    []string{"2017-01-01", "2017-01-01"},
		})
	}))
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)
	total, missing, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, 3, missing)

	summary := ds.Summary(models.DashboardFilter{})
	assert.Equal(t, 3, summary.MissingCount)
}

func TestDashboardSaveResultsCSV(t *testing.T) {
	srv := stubPredictor(t)
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)
	_, _, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.NoError(t, err)

	path, err := ds.SaveResultsCSV()
	assert.NoError(t, err)

	content, err := os.ReadFile(path)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Len(t, lines, 6) // ヘッダー + 5行
	assert.Equal(t, "date,country,store,product,num_sold_predicted", lines[0])
	assert.Equal(t, "2017-01-01,Canada,Discount Stickers,Holographic Goose,10", lines[1])
}

func TestDashboardSaveResultsCSVWithoutData(t *testing.T) {
	ds := newTestDashboard(t, "http://localhost:0")

	_, err := ds.SaveResultsCSV()
	assert.Error(t, err)
}

func TestDashboardExportXLSX(t *testing.T) {
	srv := stubPredictor(t)
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)
	_, _, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.NoError(t, err)

	data, err := ds.ExportXLSX(models.DashboardFilter{})
	assert.NoError(t, err)
	assert.NotEmpty(t, data)
	// xlsxはZIPコンテナ
	assert.Equal(t, byte('P'), data[0])
	assert.Equal(t, byte('K'), data[1])
}

func TestDashboardUploadUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ds := newTestDashboard(t, srv.URL)
	_, _, err := ds.Upload("test.csv", []byte(testUploadCSV))
	assert.Error(t, err)
	assert.Equal(t, ErrKindHTTPStatus, KindOf(err))
	assert.False(t, ds.HasData())
}
