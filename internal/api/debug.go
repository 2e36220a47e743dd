package api

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"tailscale.com/tsweb"
)

// AttachDebugRoutes mounts the /debug/ handlers on mux: a plain-text dump
// of live track state and the raw per-minute history, alongside the
// standard pprof and varz handlers tsweb brings.
func (s *Server) AttachDebugRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("tracks", "live track states", func(w http.ResponseWriter, r *http.Request) {
		tracks := s.tracker.ActiveTracks()
		sort.Slice(tracks, func(i, j int) bool { return tracks[i].ID < tracks[j].ID })

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "line %s cooldown %s\n", s.tracker.Line(), s.tracker.Cooldown())
		fmt.Fprintf(w, "%d live tracks\n\n", len(tracks))
		for _, tr := range tracks {
			fmt.Fprintf(w, "track %d: side %+.1f, last counted-eligible %s ago\n",
				tr.ID, tr.Side, time.Since(tr.LastUpdate).Truncate(time.Millisecond))
		}
	})

	debug.HandleFunc("config", "effective runtime config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "run %s\nline %s\ncooldown %s\nstale after %s\ncleanup every %s\nmin confidence %g\nclasses %v\n",
			s.runID, s.tracker.Line(), s.tracker.Cooldown(),
			s.cfg.GetStaleAfter(), s.cfg.GetCleanupInterval(),
			s.cfg.GetMinConfidence(), s.cfg.GetClasses())
	})

	debug.HandleFunc("history", "per-minute crossing buckets", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if s.history == nil {
			fmt.Fprintln(w, "no history configured")
			return
		}
		series := s.history.Series(time.Now())
		for i := range series.Minutes {
			if series.In[i] == 0 && series.Out[i] == 0 {
				continue
			}
			fmt.Fprintf(w, "%s  in=%d out=%d\n",
				series.Minutes[i].Format("15:04"), series.In[i], series.Out[i])
		}
	})
}
