package news

import (
	"net/http"
	"time"
)

// FetchResult はHTTPステータスコードに基づく取得結果の分類。
type FetchResult int

const (
	// FetchResultOK は取得成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified は未変更（304）。
	FetchResultNotModified
	// FetchResultBackoff は時間をおいて再試行すべきステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultFailed はそれ以外の失敗。次の周期で通常どおり再試行する。
	FetchResultFailed
)

const (
	initialBackoff = 5 * time.Minute
	maxBackoff     = 6 * time.Hour
)

// ClassifyHTTPStatus はHTTPステータスコードを取得結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == http.StatusOK:
		return FetchResultOK
	case statusCode == http.StatusNotModified:
		return FetchResultNotModified
	case statusCode == http.StatusTooManyRequests, statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultFailed
	}
}

// CalculateBackoff は連続エラー回数に基づく指数バックオフの待ち時間を返す。
// 初回5分、2倍ずつ増加し、最大6時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
