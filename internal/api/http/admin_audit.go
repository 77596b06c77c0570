package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	syncx "github.com/learnhub/learnhub-lms/internal/sync"
)

type auditEvent struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"siteId"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

// GET /admin/events?after=0&limit=100
// Pages through the event log in sequence order; pass the last seq seen as after.
func AuditEventsHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		list, err := events.Since(r.Context(), after, parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			respondError(w, r, err)
			return
		}
		out := make([]auditEvent, 0, len(list))
		for _, e := range list {
			out = append(out, auditEvent{
				Seq:       e.Seq,
				SiteID:    e.SiteID,
				Type:      e.Type,
				Key:       e.Key,
				Data:      json.RawMessage(e.DataJSON),
				CreatedAt: time.Unix(e.CreatedAt, 0).UTC(),
			})
		}
		respondJSON(w, http.StatusOK, out)
	}
}
