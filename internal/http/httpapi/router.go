package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	mw "server/internal/middleware"
)

// NewRouter assembles the HTTP surface. Generated assets are served read-only
// under /static/ out of mediaRoot.
func NewRouter(app *handlers.App, logger infra.Logger, mediaRoot string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		mw.Logger(logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/posts", func(r chi.Router) {
		r.Post("/generate", app.GeneratePost)
	})

	r.Route("/v1/moods", func(r chi.Router) {
		r.Post("/images", app.GenerateMoodImages)
		r.Post("/videos", app.GenerateMoodVideo)
		r.Get("/", app.ListMoodMedia)
	})

	if mediaRoot != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(mediaRoot)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
