// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"net/http"
	"strings"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

// tokenExchange hands out storage node credentials for any syntactically
// present assertion. The endpoint always points back at this server.
func (h *Handler) tokenExchange(w http.ResponseWriter, r *http.Request) {
	log := logger.FromRequest(r)

	auth := r.Header.Get("Authorization")
	assertion, ok := strings.CutPrefix(auth, "BrowserID ")
	if !ok || strings.TrimSpace(assertion) == "" {
		log.Warn().Msg("token exchange without assertion")
		writeJSON(w, http.StatusUnauthorized, models.TokenServerError{
			Status: "invalid-credentials",
		})
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	writeJSON(w, http.StatusOK, models.TokenServerResponse{
		ID:       h.creds.Username,
		Key:      h.creds.Password,
		UID:      1,
		Endpoint: scheme + "://" + r.Host,
		Duration: 3600,
	})
}
