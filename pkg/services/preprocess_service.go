package services

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"sticker-sales-api/pkg/models"
)

// PreprocessService は学習時と同一の特徴量エンコーディングを再現する。
// 学習CSV（id,date,country,store,product,num_sold）からカテゴリ辞書と
// 正規化統計を一度だけ学習し、以降は読み取り専用で共有される。
// カテゴリ値は学習データの整列済みユニーク値に対する1始まりのコードに
// 変換され、未知の値は0になる。連続値は中央値で欠損補完した上で
// (x - mean) / std に正規化される。
type PreprocessService struct {
	mu           sync.RWMutex
	trainCSVPath string
	targetColumn string
	indexColumn  string
	fitted       bool
	catColumns   []string
	contColumns  []string
	vocab        map[string]map[string]float32
	contStats    map[string]contStat
}

type contStat struct {
	Median float64
	Mean   float64
	Std    float64
}

// NewPreprocessService creates a new PreprocessService bound to a training
// CSV. The encoding is not derived until Fit is called.
func NewPreprocessService(trainCSVPath string) *PreprocessService {
	return &PreprocessService{
		trainCSVPath: trainCSVPath,
		targetColumn: "num_sold",
		indexColumn:  "id",
	}
}

// Fit derives the category dictionaries and normalization statistics from the
// training corpus. Rows with a missing target are dropped before fitting,
// mirroring the training-time rule. Fit replaces any previously derived
// encoding atomically.
func (ps *PreprocessService) Fit() error {
	f, err := os.Open(ps.trainCSVPath)
	if err != nil {
		return fmt.Errorf("学習CSVのオープンに失敗: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("学習CSVの解析に失敗: %w", err)
	}
	if len(rows) < 2 {
		return NewError(ErrKindSchemaMismatch, "学習CSVにはヘッダー行とデータ行が必要です: %s", ps.trainCSVPath)
	}

	header := normalizeHeader(rows[0])
	targetIdx := indexOf(header, ps.targetColumn)
	if targetIdx == -1 {
		return NewError(ErrKindSchemaMismatch, "学習CSVに目的変数列 %q がありません", ps.targetColumn)
	}

	// 目的変数が欠損している行を除外（学習時のみのルール）
	var dataRows [][]string
	for _, row := range rows[1:] {
		if len(row) <= targetIdx || strings.TrimSpace(row[targetIdx]) == "" {
			continue
		}
		dataRows = append(dataRows, row)
	}
	if len(dataRows) == 0 {
		return NewError(ErrKindSchemaMismatch, "学習CSVに有効なデータ行がありません: %s", ps.trainCSVPath)
	}

	// 連続値/カテゴリの振り分け：全ての非空値が数値として解釈できる列は連続値
	var catColumns, contColumns []string
	colValues := make(map[string][]string, len(header))
	for i, name := range header {
		if name == ps.indexColumn || i == targetIdx {
			continue
		}
		values := make([]string, 0, len(dataRows))
		numeric := true
		for _, row := range dataRows {
			v := ""
			if len(row) > i {
				v = strings.TrimSpace(row[i])
			}
			values = append(values, v)
			if v != "" && numeric {
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					numeric = false
				}
			}
		}
		colValues[name] = values
		if numeric {
			contColumns = append(contColumns, name)
		} else {
			catColumns = append(catColumns, name)
		}
	}

	// カテゴリ辞書：整列済みユニーク値→1始まりのコード（0は未知値用）
	vocab := make(map[string]map[string]float32, len(catColumns))
	for _, name := range catColumns {
		uniq := make(map[string]struct{})
		for _, v := range colValues[name] {
			if v != "" {
				uniq[v] = struct{}{}
			}
		}
		keys := make([]string, 0, len(uniq))
		for k := range uniq {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		codes := make(map[string]float32, len(keys))
		for i, k := range keys {
			codes[k] = float32(i + 1)
		}
		vocab[name] = codes
	}

	// 連続値統計：中央値補完後の平均と標準偏差
	contStats := make(map[string]contStat, len(contColumns))
	for _, name := range contColumns {
		var nums []float64
		for _, v := range colValues[name] {
			if v == "" {
				continue
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				nums = append(nums, f)
			}
		}
		median := medianOf(nums)

		var sum float64
		n := len(colValues[name])
		filled := make([]float64, 0, n)
		for _, v := range colValues[name] {
			f := median
			if v != "" {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					f = parsed
				}
			}
			filled = append(filled, f)
			sum += f
		}
		mean := sum / float64(len(filled))

		var sq float64
		for _, f := range filled {
			sq += (f - mean) * (f - mean)
		}
		std := math.Sqrt(sq / float64(len(filled)))
		if std == 0 {
			std = 1
		}

		contStats[name] = contStat{Median: median, Mean: mean, Std: std}
	}

	ps.mu.Lock()
	ps.catColumns = catColumns
	ps.contColumns = contColumns
	ps.vocab = vocab
	ps.contStats = contStats
	ps.fitted = true
	ps.mu.Unlock()

	return nil
}

// Transform encodes raw sales records into the model's expected feature
// layout: categorical columns first, continuous columns after, row order
// preserved 1:1 with input. Unseen categories encode to 0 without raising an
// error, matching the silent behavior of the training pipeline.
func (ps *PreprocessService) Transform(records []models.SalesRecord) ([][]float32, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	if !ps.fitted {
		return nil, NewError(ErrKindEncoding, "エンコーディングが未学習です。先にFitを呼び出してください")
	}

	out := make([][]float32, len(records))
	for i, rec := range records {
		fields := map[string]string{
			"date":    rec.Date,
			"country": rec.Country,
			"store":   rec.Store,
			"product": rec.Product,
		}

		row := make([]float32, 0, len(ps.catColumns)+len(ps.contColumns))
		for _, name := range ps.catColumns {
			row = append(row, ps.vocab[name][fields[name]])
		}
		for _, name := range ps.contColumns {
			stat := ps.contStats[name]
			f := stat.Median
			if v, ok := fields[name]; ok && v != "" {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					f = parsed
				}
			}
			row = append(row, float32((f-stat.Mean)/stat.Std))
		}
		out[i] = row
	}

	return out, nil
}

// NumFeatures returns the width of the encoded feature layout.
func (ps *PreprocessService) NumFeatures() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.catColumns) + len(ps.contColumns)
}

// Fitted reports whether the encoding has been derived.
func (ps *PreprocessService) Fitted() bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.fitted
}

// VocabularySizes returns the number of known categories per categorical
// column, for diagnostics.
func (ps *PreprocessService) VocabularySizes() map[string]int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	sizes := make(map[string]int, len(ps.vocab))
	for name, codes := range ps.vocab {
		sizes[name] = len(codes)
	}
	return sizes
}

func medianOf(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	sorted := append([]float64(nil), nums...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func normalizeHeader(hdr []string) []string {
	out := make([]string, len(hdr))
	for i, v := range hdr {
		// BOMを除去してから小文字化
		v = strings.TrimPrefix(v, "\uFEFF")
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func indexOf(hdr []string, name string) int {
	for i, v := range hdr {
		if v == name {
			return i
		}
	}
	return -1
}
