package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// publishStatus snapshots the roster for StatusHandler. The loop goroutine
// is the only writer; readers only ever see complete snapshots.
func (s *Server) publishStatus() {
	players := make([]any, 0, len(s.players))
	for _, p := range s.players {
		pos := p.State.Position
		players = append(players, map[string]any{
			"index":      int(p.Index),
			"name":       p.Name,
			"connected":  p.Connected(),
			"last_input": p.LastInput.Index,
			"queued":     len(p.inputs),
			"position":   []any{pos.X(), pos.Y(), pos.Z()},
		})
	}

	st, err := structpb.NewStruct(map[string]any{
		"tick":      s.tick,
		"tick_rate": s.cfg.TickRate,
		"players":   players,
	})
	if err != nil {
		log.Error().Err(err).Msg("building status")
		return
	}
	b, err := protojson.Marshal(st)
	if err != nil {
		log.Error().Err(err).Msg("encoding status")
		return
	}
	s.status.Store(&b)
}

// StatusHandler serves the latest published status as JSON.
func (s *Server) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := s.status.Load()
		if b == nil {
			http.Error(w, "no status yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(*b)
	})
}
