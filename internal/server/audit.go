package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/traceledger/internal/api"
	"github.com/wolfeidau/traceledger/internal/models"
	"github.com/wolfeidau/traceledger/internal/store"
)

// parseAuditFilter reads kind, ledger, key, sub_key, caller, from and limit
// query parameters.
func parseAuditFilter(r *http.Request) (store.AuditFilter, error) {
	q := r.URL.Query()
	filter := store.AuditFilter{
		Ledger: q.Get("ledger"),
		Key:    q.Get("key"),
		SubKey: q.Get("sub_key"),
		Caller: models.Identity(q.Get("caller")).Normalize(),
	}

	if kinds := q.Get("kind"); kinds != "" {
		for _, k := range strings.Split(kinds, ",") {
			kind := models.EventKind(strings.TrimSpace(k))
			if !kind.Valid() {
				return filter, fmt.Errorf("unknown event kind %q", k)
			}
			filter.Kinds = append(filter.Kinds, kind)
		}
	}

	if from := q.Get("from"); from != "" {
		n, err := strconv.ParseInt(from, 10, 64)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid from sequence %q", from)
		}
		filter.FromSequence = n
	}

	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("invalid limit %q", limit)
		}
		filter.Limit = n
	}

	return filter, nil
}

func (s *Server) replayAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	recs, err := s.svc.Replay(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AuditRecordsResponse{Records: orEmpty(recs)})
}

func (s *Server) batchHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.BatchHistory(r.Context(), r.PathValue("handle"), r.PathValue("product"), r.PathValue("batch"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.AuditRecordsResponse{Records: orEmpty(recs)})
}

func (s *Server) verifyAudit(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Verify(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrChainBroken) {
			writeJSON(w, http.StatusOK, api.VerifyResponse{Valid: false, Records: n, Error: err.Error()})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.VerifyResponse{Valid: true, Records: n})
}

// streamAudit sends matching history then live records as server sent
// events. A Last-Event-ID header resumes after that sequence.
func (s *Server) streamAudit(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	filter, err := parseAuditFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if last := r.Header.Get("Last-Event-ID"); last != "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil {
			badRequest(w, fmt.Sprintf("invalid Last-Event-ID %q", last))
			return
		}
		filter.FromSequence = max(filter.FromSequence, n+1)
	}

	recs, err := s.svc.Subscribe(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Warn().Err(err).Msg("Streaming not supported")
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.closing:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case rec, ok := <-recs:
			if !ok {
				// subscription closed by the log, the client resumes with Last-Event-ID
				log.Debug().Msg("Audit subscription closed")
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				log.Error().Err(err).Int64("sequence", rec.Sequence).Msg("Failed to encode audit record")
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", rec.Sequence, rec.Kind, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
