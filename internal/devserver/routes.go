// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withLogging)

	// token exchange is authenticated by assertion, not basic auth
	router.Get("/1.0/sync/1.5", h.tokenExchange)

	router.Group(func(r chi.Router) {
		r.Use(h.withBasicAuth)

		r.Get("/info/collections", h.infoCollections)

		r.Route("/storage", func(r chi.Router) {
			r.Delete("/", h.deleteAll)

			r.Route("/{collection}", func(r chi.Router) {
				r.Get("/", h.getCollection)
				r.Post("/", h.postCollection)
				r.Delete("/", h.deleteCollection)

				r.Get("/{guid}", h.getRecord)
				r.Put("/{guid}", h.putRecord)
				r.Delete("/{guid}", h.deleteRecord)
			})
		})
	})

	return router
}
