package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// dbPingTimeout はDB疎通確認のタイムアウト。
const dbPingTimeout = 2 * time.Second

// DBPinger はDB疎通確認のインターフェース。*sql.DBが実装する。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db DBPinger
}

// NewHealthHandler はHealthHandlerを生成する。dbはnil可（詳細チェックでdegradedになる）。
func NewHealthHandler(db DBPinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Liveness はプロセスの生存確認を返す。依存先には触れない。
// GET /health
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Detailed はDB疎通を含む詳細なヘルスチェックを返す。DBに到達できない場合は503。
// GET /health/detailed
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dbPingTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	if h.db == nil || h.db.PingContext(ctx) != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status":   "degraded",
			"database": "unavailable",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":   "ok",
		"database": "ok",
	})
}
