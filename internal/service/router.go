package service

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(api *Api) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireOwner)

		r.Route("/bookmarks", func(r chi.Router) {
			r.Post("/preview", api.PreviewBookmark)
			r.Post("/", api.SaveBookmark)
			r.Get("/", api.ListBookmarks)
			r.Post("/search", api.SearchBookmarks)
			r.Post("/parse-query", api.ParseSearchQuery)
			r.Get("/{id}", api.GetBookmark)
			r.Put("/{id}", api.UpdateBookmark)
			r.Patch("/{id}/read-status", api.UpdateReadStatus)
			r.Delete("/{id}", api.DeleteBookmark)
			r.Post("/{id}/regenerate-tags", api.RegenerateTags)
		})

		r.Get("/categories", api.ListCategories)
		r.Post("/categories/{category}/refresh", api.SubmitCategoryRefresh)

		r.Get("/jobs/active", api.ListActiveJobs)
		r.Get("/jobs/{id}", api.GetJob)

		r.Get("/feed", api.ListFeedArticles)
		r.Post("/feed/refresh", api.SubmitFeedRefresh)
	})

	return r
}
