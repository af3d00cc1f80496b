package fetch

import (
	"fmt"
	"time"
)

// FetchResult はHTTPステータスコードに基づくフェッチ結果の分類。
type FetchResult int

const (
	// FetchResultOK はフェッチ成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified はコンテンツ未変更（304）。
	FetchResultNotModified
	// FetchResultStop はフェッチ停止が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff はバックオフが必要なステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	initialBackoff = 30 * time.Minute
	maxBackoff     = 12 * time.Hour
	// parseFailureThreshold はパース失敗によるフェッチ停止の閾値。
	parseFailureThreshold = 10
)

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == 200:
		return FetchResultOK
	case statusCode == 304:
		return FetchResultNotModified
	case statusCode == 404 || statusCode == 410:
		return FetchResultStop
	case statusCode == 401 || statusCode == 403:
		return FetchResultStop
	case statusCode == 429:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
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

// FeedState はフィードごとのフェッチ状態。プロセス内でのみ保持する。
type FeedState struct {
	// FeedURL はHTMLページから検出したフィードのURL。空なら設定されたURLを直接取得する。
	FeedURL           string
	ETag              string
	LastModified      string
	ConsecutiveErrors int
	NextFetchAt       time.Time
	Stopped           bool
	LastError         string
}

// Due はnow時点でフェッチ対象かどうかを返す。
func (s *FeedState) Due(now time.Time) bool {
	return !s.Stopped && !now.Before(s.NextFetchAt)
}

func (s *FeedState) stop(reason string) {
	s.Stopped = true
	s.LastError = reason
}

func (s *FeedState) backoff(now time.Time, reason string) {
	s.ConsecutiveErrors++
	s.LastError = reason
	s.NextFetchAt = now.Add(CalculateBackoff(s.ConsecutiveErrors - 1))
}

// succeed は連続エラー回数をリセットする。次回はスケジューラの周期で実行する。
func (s *FeedState) succeed() {
	s.ConsecutiveErrors = 0
	s.LastError = ""
	s.NextFetchAt = time.Time{}
}

// parseFailed はパース失敗を数え、閾値に達したらフェッチを停止する。
func (s *FeedState) parseFailed(reason string) {
	s.ConsecutiveErrors++
	s.LastError = fmt.Sprintf("パース失敗 (%d回連続): %s", s.ConsecutiveErrors, reason)
	if s.ConsecutiveErrors >= parseFailureThreshold {
		s.stop(fmt.Sprintf("パース失敗が%d回連続したためフェッチを停止しました: %s", s.ConsecutiveErrors, reason))
	}
}
