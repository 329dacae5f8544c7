package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/mind-engage/secacademy-lms/internal/eventlog"
)

// EventFeed is satisfied by *eventlog.Repo.
type EventFeed interface {
	List(ctx context.Context, after int64, limit int) ([]eventlog.Event, error)
}

// GET /events?after=&limit=
// Pages through the attempt audit log oldest first. Pass the last seq seen as after.
func ListEventsHandler(feed EventFeed) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		var after int64
		if s := qs.Get("after"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil || v < 0 {
				http.Error(w, "invalid after", http.StatusBadRequest)
				return
			}
			after = v
		}
		list, err := feed.List(r.Context(), after, parseIntDefault(qs.Get("limit"), 100))
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
