package history

import (
	"log"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/smart-traffic/internal/httputil"
)

// AttachAdminRoutes mounts live SQL over the history and a stats page on
// the /debug/ handler of mux.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://:memory:", s.db, &tailsql.DBOptions{
		Label: "Signal timing history",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("history-stats", "Retained history size and summary (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary, err := s.Summary(r.Context())
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, map[string]interface{}{
			"limit":   s.limit,
			"summary": summary,
		})
	}))
}
