package middleware

import (
	"net/http"
	"strings"
)

// RequestMetrics はリクエスト処理のメトリクス記録に必要なインターフェース。
// metrics.Collectorが実装する。
type RequestMetrics interface {
	RecordHTTPStatus(statusCode int)
	RecordResourceWrite(resource, operation string)
	RecordTokenValidationFailure()
}

// NewMetricsMiddleware はレスポンスのステータスコードと、成功した
// リソース書き込み（/api/items・/api/postsへのPOST/PUT/DELETE）を記録する
// ミドルウェアを返す。
func NewMetricsMiddleware(m RequestMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			m.RecordHTTPStatus(rec.statusCode)

			if rec.statusCode < 300 {
				if resource, operation, ok := resourceWrite(r); ok {
					m.RecordResourceWrite(resource, operation)
				}
			}
		})
	}
}

// resourceWrite はリクエストがリソース書き込みに該当するか判定し、
// リソース名と操作名を返す。
func resourceWrite(r *http.Request) (resource, operation string, ok bool) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/items"):
		resource = "item"
	case strings.HasPrefix(r.URL.Path, "/api/posts"):
		resource = "post"
	default:
		return "", "", false
	}

	switch r.Method {
	case http.MethodPost:
		return resource, "create", true
	case http.MethodPut:
		return resource, "update", true
	case http.MethodDelete:
		return resource, "delete", true
	default:
		return "", "", false
	}
}
