package services

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
}

// MonitoringService はAPIのモニタリング機能を提供します。
// 直近のリクエストログをメモリ上に保持します（上限あり、古いものから破棄）。
type MonitoringService struct {
	logs    []LogEntry
	maxLogs int
	mu      sync.RWMutex
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{
		logs:    make([]LogEntry, 0),
		maxLogs: 10000,
	}
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > s.maxLogs {
		s.logs = s.logs[len(s.logs)-s.maxLogs:]
	}
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 次のミドルウェア/ハンドラを実行
		c.Next()

		// モニタリング自身のエンドポイントは記録しない
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/monitoring") || path == "/health" {
			return
		}

		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		})
	}
}

// MonitoringStats は集計済みのリクエスト統計です。
type MonitoringStats struct {
	TotalRequests   int                `json:"total_requests"`
	ErrorCount      int                `json:"error_count"`
	Endpoints       map[string]int     `json:"endpoints"`
	StatusCodes     map[int]int        `json:"status_codes"`
	AvgResponseMsBy map[string]float64 `json:"avg_response_ms_by_endpoint"`
}

// GetStats は指定時間内のログを集計して返します。periodHoursが0以下の場合は全期間。
func (s *MonitoringService) GetStats(periodHours int) MonitoringStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cutoff time.Time
	if periodHours > 0 {
		cutoff = time.Now().Add(-time.Duration(periodHours) * time.Hour)
	}

	stats := MonitoringStats{
		Endpoints:       make(map[string]int),
		StatusCodes:     make(map[int]int),
		AvgResponseMsBy: make(map[string]float64),
	}
	sumMs := make(map[string]float64)

	for _, entry := range s.logs {
		if !cutoff.IsZero() && entry.Timestamp.Before(cutoff) {
			continue
		}
		key := entry.Method + " " + entry.Path
		stats.TotalRequests++
		stats.Endpoints[key]++
		stats.StatusCodes[entry.StatusCode]++
		sumMs[key] += float64(entry.ResponseTime.Milliseconds())
		if entry.StatusCode >= 400 {
			stats.ErrorCount++
		}
	}

	for key, total := range sumMs {
		stats.AvgResponseMsBy[key] = total / float64(stats.Endpoints[key])
	}
	return stats
}

// GetRecentLogs は新しい順に最大limit件のログを返します。
func (s *MonitoringService) GetRecentLogs(limit int) []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.logs) {
		limit = len(s.logs)
	}
	out := make([]LogEntry, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.logs[len(s.logs)-1-i]
	}
	return out
}
