package services

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"sticker-sales-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// DashboardService はアップロードされた売上テーブルを予測APIに渡し、
// 結合済みの予測結果をフィルタ・集計して提供する。状態は最新の
// アップロード1件のみをメモリに保持する（後勝ち）。
type DashboardService struct {
	mu             sync.RWMutex
	client         *PredictionClient
	resultsCSVPath string
	rows           []models.PredictionRow
	sourceName     string
	uploadedAt     time.Time
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(client *PredictionClient, resultsCSVPath string) *DashboardService {
	return &DashboardService{
		client:         client,
		resultsCSVPath: resultsCSVPath,
	}
}

// Upload parses an uploaded table, requests predictions for it and replaces
// the current session state with the joined result. When the predictor
// returns fewer or more values than rows submitted, the prediction column is
// filled with a missing marker instead of aborting. Returns total and missing
// row counts.
func (ds *DashboardService) Upload(filename string, data []byte) (int, int, error) {
	var records []models.SalesRecord
	var err error

	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		records, err = ParseSalesXLSX(data)
	} else {
		records, err = ParseSalesCSV(data)
	}
	if err != nil {
		return 0, 0, err
	}

	var resp *models.PredictResponse
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		// Excelは予測APIがCSVしか受けないためJSONで送る
		resp, err = ds.client.Predict(records)
	} else {
		resp, err = ds.client.PredictCSV(filename, data)
	}
	if err != nil {
		return 0, 0, err
	}

	rows := make([]models.PredictionRow, len(records))
	missing := 0
	for i, rec := range records {
		row := models.PredictionRow{
			Date:    rec.Date,
			Country: rec.Country,
			Store:   rec.Store,
			Product: rec.Product,
		}
		// 行数不一致時は中断せず欠損マーカーで埋める
		if i < len(resp.NumSold) {
			row.PredictedSales = resp.NumSold[i]
		} else {
			row.Missing = true
			missing++
		}
		rows[i] = row
	}

	ds.mu.Lock()
	ds.rows = rows
	ds.sourceName = filename
	ds.uploadedAt = time.Now()
	ds.mu.Unlock()

	return len(rows), missing, nil
}

// HasData reports whether an upload has been processed.
func (ds *DashboardService) HasData() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.rows != nil
}

// Rows returns the joined prediction rows matching the filter, sorted by
// date.
func (ds *DashboardService) Rows(filter models.DashboardFilter) []models.PredictionRow {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	out := ds.filtered(filter)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Series aggregates predicted sales by date. agg is "sum" (default) or
// "mean". Missing rows are excluded from aggregation.
func (ds *DashboardService) Series(filter models.DashboardFilter, agg string) ([]models.SeriesPoint, error) {
	if agg == "" {
		agg = "sum"
	}
	if agg != "sum" && agg != "mean" {
		return nil, NewError(ErrKindSchemaMismatch, "無効な集計方法です: %s。'sum' または 'mean' を指定してください", agg)
	}

	ds.mu.RLock()
	rows := ds.filtered(filter)
	ds.mu.RUnlock()

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, row := range rows {
		if row.Missing {
			continue
		}
		sums[row.Date] += row.PredictedSales
		counts[row.Date]++
	}

	dates := make([]string, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	points := make([]models.SeriesPoint, 0, len(dates))
	for _, d := range dates {
		v := sums[d]
		if agg == "mean" {
			v /= float64(counts[d])
		}
		points = append(points, models.SeriesPoint{Date: d, Value: v})
	}
	return points, nil
}

// Trend returns the 7-day rolling mean of the daily sum series, matching the
// dashed trend overlay of the original dashboard.
func (ds *DashboardService) Trend(filter models.DashboardFilter) ([]models.SeriesPoint, error) {
	daily, err := ds.Series(filter, "sum")
	if err != nil {
		return nil, err
	}

	const window = 7
	out := make([]models.SeriesPoint, 0, len(daily))
	for i := range daily {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		var sum float64
		for _, p := range daily[lo : i+1] {
			sum += p.Value
		}
		out = append(out, models.SeriesPoint{Date: daily[i].Date, Value: sum / float64(i+1-lo)})
	}
	return out, nil
}

// Summary computes the KPI card values for the filtered rows: total predicted
// sales, average daily sales, top performing store and best selling product.
func (ds *DashboardService) Summary(filter models.DashboardFilter) *models.DashboardSummary {
	ds.mu.RLock()
	rows := ds.filtered(filter)
	ds.mu.RUnlock()

	summary := &models.DashboardSummary{RowCount: len(rows)}

	dailySums := make(map[string]float64)
	storeSums := make(map[string]float64)
	productSums := make(map[string]float64)
	for _, row := range rows {
		if row.Missing {
			summary.MissingCount++
			continue
		}
		summary.TotalPredictedSales += row.PredictedSales
		dailySums[row.Date] += row.PredictedSales
		storeSums[row.Store] += row.PredictedSales
		productSums[row.Product] += row.PredictedSales
	}

	if len(dailySums) > 0 {
		var total float64
		for _, v := range dailySums {
			total += v
		}
		summary.AverageDailySales = total / float64(len(dailySums))
	}

	summary.TopStore, summary.TopStoreSales = topOf(storeSums)
	summary.TopProduct, summary.TopProductSales = topOf(productSums)
	return summary
}

// Options returns the distinct filter choices present in the current upload.
func (ds *DashboardService) Options() *models.FilterOptions {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	countries := make(map[string]struct{})
	stores := make(map[string]struct{})
	products := make(map[string]struct{})
	minDate, maxDate := "", ""
	for _, row := range ds.rows {
		countries[row.Country] = struct{}{}
		stores[row.Store] = struct{}{}
		products[row.Product] = struct{}{}
		if minDate == "" || row.Date < minDate {
			minDate = row.Date
		}
		if row.Date > maxDate {
			maxDate = row.Date
		}
	}

	return &models.FilterOptions{
		Countries: sortedKeys(countries),
		Stores:    sortedKeys(stores),
		Products:  sortedKeys(products),
		MinDate:   minDate,
		MaxDate:   maxDate,
	}
}

// SaveResultsCSV writes the current rows with an added num_sold_predicted
// column next to the original fields, and returns the file path. Missing
// predictions are written as empty cells.
func (ds *DashboardService) SaveResultsCSV() (string, error) {
	ds.mu.RLock()
	rows := append([]models.PredictionRow(nil), ds.rows...)
	ds.mu.RUnlock()

	if rows == nil {
		return "", NewError(ErrKindSchemaMismatch, "保存できる予測結果がありません。先にCSVをアップロードしてください")
	}

	f, err := os.Create(ds.resultsCSVPath)
	if err != nil {
		return "", fmt.Errorf("結果CSVの作成に失敗: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "country", "store", "product", "num_sold_predicted"}); err != nil {
		return "", fmt.Errorf("結果CSVの書き込みに失敗: %w", err)
	}
	for _, row := range rows {
		pred := ""
		if !row.Missing {
			pred = fmt.Sprintf("%g", row.PredictedSales)
		}
		if err := w.Write([]string{row.Date, row.Country, row.Store, row.Product, pred}); err != nil {
			return "", fmt.Errorf("結果CSVの書き込みに失敗: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("結果CSVの書き込みに失敗: %w", err)
	}

	return ds.resultsCSVPath, nil
}

// ExportXLSX renders the filtered rows as an Excel workbook.
func (ds *DashboardService) ExportXLSX(filter models.DashboardFilter) ([]byte, error) {
	rows := ds.Rows(filter)

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"Date", "Country", "Store", "Product", "Predicted Sales"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("Excelヘッダーの書き込みに失敗: %w", err)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		var pred interface{}
		if !row.Missing {
			pred = row.PredictedSales
		}
		values := []interface{}{row.Date, row.Country, row.Store, row.Product, pred}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("Excel行の書き込みに失敗: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("Excelの出力に失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// filtered applies the dashboard filter. Callers must hold at least a read
// lock.
func (ds *DashboardService) filtered(filter models.DashboardFilter) []models.PredictionRow {
	start, end := filter.StartDate, filter.EndDate

	// 「直近N日」は最新日付からの相対指定
	if filter.LastDays > 0 {
		maxDate := ""
		for _, row := range ds.rows {
			if row.Date > maxDate {
				maxDate = row.Date
			}
		}
		if t, err := time.Parse("2006-01-02", maxDate); err == nil {
			cutoff := t.AddDate(0, 0, -filter.LastDays).Format("2006-01-02")
			if cutoff > start {
				start = cutoff
			}
		}
	}

	out := make([]models.PredictionRow, 0, len(ds.rows))
	for _, row := range ds.rows {
		if start != "" && row.Date < start {
			continue
		}
		if end != "" && row.Date > end {
			continue
		}
		if filter.Country != "" && row.Country != filter.Country {
			continue
		}
		if filter.Store != "" && row.Store != filter.Store {
			continue
		}
		if filter.Product != "" && row.Product != filter.Product {
			continue
		}
		out = append(out, row)
	}
	return out
}

func topOf(sums map[string]float64) (string, float64) {
	top, best := "", 0.0
	for k, v := range sums {
		if k == "" {
			continue
		}
		if top == "" || v > best {
			top, best = k, v
		}
	}
	return top, best
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
