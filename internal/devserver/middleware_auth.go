// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"crypto/subtle"
	"net/http"

	"github.com/weavesync/weavesync/internal/logger"
)

// withBasicAuth rejects storage requests whose basic auth pair does not
// match the credentials the token endpoint hands out.
func (h *Handler) withBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !equal(username, h.creds.Username) || !equal(password, h.creds.Password) {
			logger.FromRequest(r).Warn().Str("uri", r.RequestURI).Msg("rejected storage request")
			w.Header().Set("WWW-Authenticate", `Basic realm="storage"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
