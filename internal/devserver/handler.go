// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"github.com/weavesync/weavesync/internal/logger"
)

// Credentials are the basic auth username and password the storage routes
// expect. The token endpoint hands the same pair back to clients.
type Credentials struct {
	Username string
	Password string
}

// Handler bundles the in-memory store with the HTTP layer.
type Handler struct {
	store *Store
	creds Credentials

	logger *logger.Logger
}

// NewHandler constructs a Handler over the given store.
func NewHandler(store *Store, creds Credentials, logger *logger.Logger) *Handler {
	logger.Info().Msg("dev storage handler created")
	return &Handler{
		store:  store,
		creds:  creds,
		logger: logger,
	}
}
