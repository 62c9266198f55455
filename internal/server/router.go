package server

import (
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed pages/*.html
var pages embed.FS

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handlePage("index.html"))
	r.Get("/currentlyplaying", s.handlePage("currently_playing.html"))
	r.Get("/nowplaying", s.handlePage("now_playing_notification.html"))

	r.Route("/api", func(r chi.Router) {
		r.Get("/current_media", s.handleCurrentMedia)
		r.Get("/media_changes", s.handleMediaChanges)
		r.Get("/album_art", s.handleAlbumArt)
	})

	return r
}

func (s *Server) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := pages.ReadFile("pages/" + name)
		if err != nil {
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	}
}
