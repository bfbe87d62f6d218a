package models

// SalesRecord 予測対象の1行（日付・国・店舗・製品）
type SalesRecord struct {
	Date    string `json:"date" binding:"required"`
	Country string `json:"country"`
	Store   string `json:"store"`
	Product string `json:"product"`
}

// PredictRequest represents a JSON prediction request for one or more records
type PredictRequest struct {
	Data []SalesRecord `json:"data" binding:"required"`
}

// PredictResponse represents the prediction result returned by the API.
// num_sold and date always have the same length and preserve input order.
type PredictResponse struct {
	NumSold []float64 `json:"num_sold"`
	Date    []string  `json:"date"`
}

// PredictionRow 予測値と入力レコードを結合したダッシュボード用の1行
type PredictionRow struct {
	Date           string  `json:"date"`
	Country        string  `json:"country"`
	Store          string  `json:"store"`
	Product        string  `json:"product"`
	PredictedSales float64 `json:"predicted_sales"`
	// Missing は予測値が得られなかった行（行数不一致時の埋め草）を示す
	Missing bool `json:"missing,omitempty"`
}

// DashboardFilter ダッシュボードの絞り込み条件
type DashboardFilter struct {
	StartDate string `json:"start_date,omitempty" form:"start_date"`
	EndDate   string `json:"end_date,omitempty" form:"end_date"`
	LastDays  int    `json:"last_days,omitempty" form:"last_days"`
	Country   string `json:"country,omitempty" form:"country"`
	Store     string `json:"store,omitempty" form:"store"`
	Product   string `json:"product,omitempty" form:"product"`
}

// SeriesPoint 日単位の集計済み時系列の1点
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// DashboardSummary KPIカード用の集計値（Total/平均/トップ店舗/売れ筋製品）
type DashboardSummary struct {
	TotalPredictedSales float64 `json:"total_predicted_sales"`
	AverageDailySales   float64 `json:"average_daily_sales"`
	TopStore            string  `json:"top_store"`
	TopStoreSales       float64 `json:"top_store_sales"`
	TopProduct          string  `json:"top_product"`
	TopProductSales     float64 `json:"top_product_sales"`
	RowCount            int     `json:"row_count"`
	MissingCount        int     `json:"missing_count"`
}

// FilterOptions 絞り込みUIに提示する選択肢
type FilterOptions struct {
	Countries []string `json:"countries"`
	Stores    []string `json:"stores"`
	Products  []string `json:"products"`
	MinDate   string   `json:"min_date"`
	MaxDate   string   `json:"max_date"`
}
