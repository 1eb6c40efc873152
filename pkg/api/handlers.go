package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ringdb/ringdb/pkg/codec"
	"github.com/ringdb/ringdb/pkg/cursor"
	"github.com/ringdb/ringdb/pkg/page"
	"github.com/ringdb/ringdb/pkg/storage"
)

// queryReadBatch is how many results a query handler pulls per cursor read.
const queryReadBatch = 256

// Server dispatches HTTP requests onto a storage instance.
type Server struct {
	storage *storage.Storage
	metrics *Metrics
	logger  *slog.Logger
}

// NewServer creates a server around an open storage.
func NewServer(store *storage.Storage, metrics *Metrics, logger *slog.Logger) *Server {
	return &Server{storage: store, metrics: metrics, logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().UnixNano()
	}

	err := s.storage.WriteEntry2(codec.Entry2{
		ParamId:   codec.ParamId(req.Param),
		Timestamp: codec.Timestamp(ts),
		Payload:   []byte(req.Value),
	})
	if err != nil {
		var se *codec.StatusError
		if errors.As(err, &se) {
			s.metrics.writesTotal.WithLabelValues(se.Code.String()).Inc()
			writeError(w, http.StatusBadRequest, se.Error())
			return
		}
		s.metrics.writesTotal.WithLabelValues("error").Inc()
		s.logger.Error("write failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.metrics.writesTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]int64{"timestamp": ts})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	s.metrics.queriesTotal.Inc()
	cur := s.storage.Search(r.Context(), *q)
	defer cur.Close()

	resp := QueryResponse{Samples: []Sample{}}
	buf := make([]cursor.Result, queryReadBatch)
	for {
		n := cur.Read(buf)
		if n == 0 {
			break
		}
		for _, res := range buf[:n] {
			entry, err := res.Page.ReadEntry(res.Offset)
			if err != nil {
				s.logger.Error("entry read failed", "offset", res.Offset, "error", err)
				continue
			}
			resp.Samples = append(resp.Samples, Sample{
				Param:     uint32(entry.ParamId),
				Timestamp: int64(entry.Timestamp),
				Value:     string(entry.Payload),
			})
			if limit > 0 && len(resp.Samples) >= limit {
				break
			}
		}
		if limit > 0 && len(resp.Samples) >= limit {
			break
		}
	}
	if code, ok := cur.IsError(); ok {
		writeError(w, http.StatusBadRequest, code.String())
		return
	}

	resp.Count = len(resp.Samples)
	s.metrics.queryResultsTotal.Add(float64(resp.Count))
	writeJSON(w, http.StatusOK, resp)
}

// handleSync publishes everything staged and flushes the mappings, so a
// following query observes all prior writes.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Sync(); err != nil {
		s.logger.Error("sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.storage.Stats()
	gap := 0
	for _, vs := range stats {
		gap += int(vs.Count - vs.SyncIndex)
	}
	s.metrics.storageSyncGap.Set(float64(gap))
	writeJSON(w, http.StatusOK, stats)
}

func parseQuery(r *http.Request) (*page.Query, error) {
	values := r.URL.Query()

	param, err := strconv.ParseUint(values.Get("param"), 10, 32)
	if err != nil {
		return nil, errors.New("invalid or missing param")
	}

	from := int64(codec.MinTimestamp)
	if v := values.Get("from"); v != "" {
		from, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.New("invalid from timestamp")
		}
	}
	to := int64(codec.MaxTimestamp)
	if v := values.Get("to"); v != "" {
		to, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.New("invalid to timestamp")
		}
	}

	dir := codec.Forward
	switch values.Get("direction") {
	case "", "forward":
	case "backward":
		dir = codec.Backward
	default:
		return nil, errors.New("direction must be forward or backward")
	}

	q := &page.Query{
		Param:      codec.ParamId(param),
		Lowerbound: codec.Timestamp(from),
		Upperbound: codec.Timestamp(to),
		Direction:  dir,
	}
	if err := q.Validate(); err != nil {
		return nil, errors.New("upperbound below lowerbound")
	}
	return q, nil
}
