package services

import (
	"bytes"
	"encoding/csv"
	"strings"

	"sticker-sales-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// ParseSalesTable converts raw table rows (header + data) into sales records.
// The date column is required; country, store and product fall back to empty
// strings when absent. Extra columns are ignored. A header-only table yields
// an empty, non-nil slice.
func ParseSalesTable(rows [][]string) ([]models.SalesRecord, error) {
	if len(rows) == 0 {
		return nil, NewError(ErrKindSchemaMismatch, "テーブルにヘッダー行がありません")
	}

	header := normalizeHeader(rows[0])
	dateIdx := indexOf(header, "date")
	if dateIdx == -1 {
		return nil, NewError(ErrKindSchemaMismatch, "必要な列が見つかりませんでした: date。ヘッダー: %v", rows[0])
	}
	countryIdx := indexOf(header, "country")
	storeIdx := indexOf(header, "store")
	productIdx := indexOf(header, "product")

	records := make([]models.SalesRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= dateIdx {
			continue
		}
		records = append(records, models.SalesRecord{
			Date:    strings.TrimSpace(row[dateIdx]),
			Country: cellAt(row, countryIdx),
			Store:   cellAt(row, storeIdx),
			Product: cellAt(row, productIdx),
		})
	}

	return records, nil
}

// ParseSalesCSV parses CSV bytes into sales records.
func ParseSalesCSV(data []byte) ([]models.SalesRecord, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, WrapError(ErrKindSchemaMismatch, err, "CSVファイルの解析に失敗しました")
	}
	return ParseSalesTable(rows)
}

// ParseSalesXLSX parses the first sheet of an Excel workbook into sales
// records.
func ParseSalesXLSX(data []byte) ([]models.SalesRecord, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, WrapError(ErrKindSchemaMismatch, err, "Excelファイルの読み込みに失敗しました")
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, WrapError(ErrKindSchemaMismatch, err, "Excelシートの行取得に失敗しました")
	}
	return ParseSalesTable(rows)
}

func cellAt(row []string, idx int) string {
	if idx == -1 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
