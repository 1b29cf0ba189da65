// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

const (
	headerTimestamp         = "X-Weave-Timestamp"
	headerRecords           = "X-Weave-Records"
	headerIfUnmodifiedSince = "X-If-Unmodified-Since"
)

func (h *Handler) infoCollections(w http.ResponseWriter, r *http.Request) {
	info := h.store.Info()

	out := make(map[string]float64, len(info))
	for name, ms := range info {
		out[name] = float64(ms) / 1000
	}

	h.stamp(w, h.store.Now())
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var newer int64
	if v := r.URL.Query().Get("newer"); v != "" {
		ms, err := decimalSecondsToMillis(v)
		if err != nil {
			h.stamp(w, h.store.Now())
			http.Error(w, "invalid newer parameter", http.StatusBadRequest)
			return
		}
		newer = ms
	}

	envs := h.store.List(collection, newer)

	w.Header().Set(headerRecords, strconv.Itoa(len(envs)))
	h.stamp(w, h.store.Now())
	writeJSON(w, http.StatusOK, envs)
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	guid := chi.URLParam(r, "guid")

	env, ok := h.store.Get(collection, guid)
	h.stamp(w, h.store.Now())
	if !ok {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, env)
}

func (h *Handler) putRecord(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	collection := chi.URLParam(r, "collection")
	guid := chi.URLParam(r, "guid")

	var env models.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		log.Err(err).Msg("invalid envelope JSON")
		h.stamp(w, h.store.Now())
		http.Error(w, "invalid envelope JSON", http.StatusBadRequest)
		return
	}
	env.GUID = guid

	if !h.checkUnmodifiedSince(w, r, h.store.Modified(collection, guid)) {
		return
	}

	ts := h.store.Put(collection, env)
	h.stamp(w, ts)
	writeJSON(w, http.StatusOK, float64(ts)/1000)
}

func (h *Handler) postCollection(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	collection := chi.URLParam(r, "collection")

	var envs []models.Envelope
	if err := json.NewDecoder(r.Body).Decode(&envs); err != nil {
		log.Err(err).Msg("invalid batch JSON")
		h.stamp(w, h.store.Now())
		http.Error(w, "invalid batch JSON", http.StatusBadRequest)
		return
	}

	ts := h.store.PutMany(collection, envs)

	success := make([]string, 0, len(envs))
	for _, env := range envs {
		success = append(success, env.GUID)
	}

	h.stamp(w, ts)
	writeJSON(w, http.StatusOK, map[string]any{
		"modified": float64(ts) / 1000,
		"success":  success,
		"failed":   map[string]string{},
	})
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	guid := chi.URLParam(r, "guid")

	if !h.checkUnmodifiedSince(w, r, h.store.Modified(collection, guid)) {
		return
	}

	ok := h.store.Delete(collection, guid)
	h.stamp(w, h.store.Now())
	if !ok {
		http.Error(w, "record not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) deleteCollection(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	ok := h.store.DeleteCollection(collection)
	h.stamp(w, h.store.Now())
	if !ok {
		http.Error(w, "collection not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	h.store.Wipe()
	h.stamp(w, h.store.Now())
	w.WriteHeader(http.StatusOK)
}

// checkUnmodifiedSince enforces the X-If-Unmodified-Since precondition
// against the target's current modification timestamp. Returns false after
// writing the response when the precondition failed or was malformed.
func (h *Handler) checkUnmodifiedSince(w http.ResponseWriter, r *http.Request, modified int64) bool {
	v := r.Header.Get(headerIfUnmodifiedSince)
	if v == "" {
		return true
	}

	since, err := decimalSecondsToMillis(v)
	if err != nil {
		h.stamp(w, h.store.Now())
		http.Error(w, "invalid "+headerIfUnmodifiedSince, http.StatusBadRequest)
		return false
	}

	if modified > since {
		h.stamp(w, h.store.Now())
		http.Error(w, "modified since", http.StatusPreconditionFailed)
		return false
	}
	return true
}

// stamp writes the server clock header. Must be called before the status
// line goes out.
func (h *Handler) stamp(w http.ResponseWriter, ms int64) {
	w.Header().Set(headerTimestamp, strconv.FormatFloat(float64(ms)/1000, 'f', 2, 64))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decimalSecondsToMillis(s string) (int64, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(math.Round(secs * 1000)), nil
}
