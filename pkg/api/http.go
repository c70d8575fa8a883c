// Package api exposes the message telemetry HTTP surface. Routing is
// gorilla/mux; handlers translate between the JSON boundary and the message
// service, including the presence-aware optional query filters.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"lucerna/pkg/aggregate"
	"lucerna/pkg/logger"
	"lucerna/pkg/metrics"
	"lucerna/pkg/models"
	"lucerna/pkg/service"
	"lucerna/pkg/tokens"
	"lucerna/pkg/utils"
)

// Handler carries the API's collaborators.
type Handler struct {
	svc *service.MessageService
}

func New(svc *service.MessageService) *Handler {
	return &Handler{svc: svc}
}

// Router returns the full API router mounted under /v1.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !h.svc.Ready() {
			_ = utils.JSONWrite(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/messages", h.createMessage).Methods(http.MethodPost)
	v1.HandleFunc("/messages", h.listMessages).Methods(http.MethodGet)
	v1.HandleFunc("/messages/stats", h.messageStats).Methods(http.MethodGet)
	v1.HandleFunc("/messages/{id}", h.getMessage).Methods(http.MethodGet)
	return r
}

func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	var in models.MessageIn
	if err := json.Unmarshal(body, &in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	var raw map[string]json.RawMessage
	_ = json.Unmarshal(body, &raw)
	if missing := firstMissingField(in, raw); missing != "" {
		utils.JSONError(w, http.StatusBadRequest, missing+" is required")
		return
	}

	m, err := h.svc.Create(r.Context(), in)
	if err != nil {
		var ume *tokens.UnsupportedModelError
		if errors.As(err, &ume) {
			metrics.CreateFailures.WithLabelValues("unsupported_model").Inc()
			utils.JSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		metrics.CreateFailures.WithLabelValues("storage").Inc()
		logger.Error("message_create_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.MessagesCreated.Inc()
	metrics.TokensRecorded.Add(float64(m.TokenCount))
	metrics.CreateDuration.Observe(time.Since(start).Seconds())
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params, err := parseQueryParams(r)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	msgs, err := h.svc.Query(r.Context(), params)
	if err != nil {
		logger.Error("messages_query_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		if lim, err := strconv.Atoi(limStr); err == nil && lim >= 0 && lim < len(msgs) {
			msgs = msgs[len(msgs)-lim:]
		}
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	metrics.QueryResults.Observe(float64(len(msgs)))
	logger.Debug("messages_list", "count", len(msgs))
	_ = utils.JSONWrite(w, http.StatusOK, msgs)
}

func (h *Handler) getMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, ok, err := h.svc.Get(r.Context(), id)
	if err != nil {
		logger.Error("message_get_failed", "id", id, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

// statsResponse is the dashboard's aggregation payload.
type statsResponse struct {
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"`
	Width   string          `json:"width"`
	Buckets []models.Bucket `json:"buckets"`
}

func (h *Handler) messageStats(w http.ResponseWriter, r *http.Request) {
	params, err := parseQueryParams(r)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	// default window: the last 24 hours
	end := time.Now().UTC()
	if params.End != nil {
		end = params.End.UTC()
	} else {
		params.End = &end
	}
	st := end.Add(-24 * time.Hour)
	if params.Start != nil {
		st = params.Start.UTC()
	} else {
		params.Start = &st
	}

	msgs, err := h.svc.Query(r.Context(), params)
	if err != nil {
		logger.Error("messages_stats_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	width := aggregate.WidthForSpan(end.Sub(st))
	buckets := aggregate.Buckets(msgs, width)
	if buckets == nil {
		buckets = []models.Bucket{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, statsResponse{
		Start:   st,
		End:     end,
		Width:   width.String(),
		Buckets: buckets,
	})
}

// firstMissingField names the first required creation field the request did
// not provide. content must be present as a key but may hold the empty
// string: an empty message is a valid record with a zero token count.
func firstMissingField(in models.MessageIn, raw map[string]json.RawMessage) string {
	switch {
	case in.UserID == "":
		return "user_id"
	case in.Model == "":
		return "model"
	case in.Role == "":
		return "role"
	}
	if _, ok := raw["content"]; !ok {
		return "content"
	}
	return ""
}

// parseQueryParams builds the typed query from URL parameters. A parameter
// that is present but empty still counts as provided (an empty aggregate_id
// is a legitimate filter); omitted parameters apply no filter at all.
func parseQueryParams(r *http.Request) (service.QueryParams, error) {
	var p service.QueryParams
	q := r.URL.Query()
	if q.Has("start_date") {
		t, err := parseTimestamp(q.Get("start_date"))
		if err != nil {
			return p, errors.New("invalid start_date: " + err.Error())
		}
		p.Start = &t
	}
	if q.Has("end_date") {
		t, err := parseTimestamp(q.Get("end_date"))
		if err != nil {
			return p, errors.New("invalid end_date: " + err.Error())
		}
		p.End = &t
	}
	if q.Has("user_id") {
		v := q.Get("user_id")
		p.UserID = &v
	}
	if q.Has("aggregate_id") {
		v := q.Get("aggregate_id")
		p.AggregateID = &v
	}
	return p, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTimestamp accepts ISO-8601 timestamps with or without a zone
// designator. Naive timestamps are taken as UTC; aware timestamps are
// converted.
func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
