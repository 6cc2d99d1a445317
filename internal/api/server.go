package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hugaba/api-sentiment-analysis/internal/aggregator"
	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/engine"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// Categories lists the category slugs advertised on the help page.
var Categories = []string{
	"food_beverages_tobacco",
	"animals_pets",
	"money_insurance",
	"beauty_wellbeing",
	"construction_manufactoring",
	"education_training",
	"electronics_technology",
	"events_entertainment",
	"hobbies_crafts",
	"home_garden",
	"media_publishing",
	"restaurants_bars",
	"health_medical",
	"utilities",
	"home_services",
	"business_services",
	"legal_services_government",
	"public_local_services",
	"shopping_fashion",
	"sports",
	"travel_vacation",
	"vehicles_transportation",
}

// Runner is the part of the engine the API drives.
type Runner interface {
	Run(ctx context.Context, rc types.RunConfig, opts engine.RunOptions) (*aggregator.Report, error)
	ActiveRuns() int32
}

// Server exposes the analysis over HTTP.
type Server struct {
	mux          *http.ServeMux
	port         int
	writeTimeout time.Duration
	version      string
	logger       *slog.Logger

	runner Runner
}

// NewServer creates a new API server.
func NewServer(cfg config.ServerConfig, runner Runner, logger *slog.Logger) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		port:         cfg.Port,
		writeTimeout: cfg.WriteTimeout,
		version:      "dev",
		logger:       logger.With("component", "api_server"),
		runner:       runner,
	}

	s.registerRoutes()
	return s
}

// SetVersion sets the version reported by /api/health.
func (s *Server) SetVersion(v string) {
	s.version = v
}

// Handle mounts an extra handler, such as the metrics endpoint.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.writeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info("API server starting", "addr", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("API server stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleHome)
	s.mux.HandleFunc("GET /graphs", s.handleGraphs)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("/", s.handleNotFound)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<h1>Bienvenue sur l'API d'analyse de sentiments</h1>
<p>Pour effectuer une recherche, ajoutez '/graphs?category=' suivi de la catégorie visée à la barre de recherche</p>
<p>Vous pouvez également ajouter des paramètres:
    <ul>
        <li>le nombre de sites à intégrer dans votre recherche '&num_of_site=' (0 pour tous les sites, défaut = 5)</li>
        <li>le nombre de pages à rechercher pour chaque site '&num_page=' (0 pour toutes les pages, défaut = 2)</li>
        <li>la localisation des sites '&location='</li>
        <li>le classifieur alternatif '&model=1'</li>
    </ul>
</p>
<p>Exemple: <a href="/graphs?category=restaurants_bars&num_of_site=3&num_page=3">/graphs?category=restaurants_bars&num_of_site=3&num_page=3</a></p>
<p>Liste des catégories à insérer dans la barre de recherche:
    <ul>
`)
	for _, c := range Categories {
		fmt.Fprintf(w, "        <li>%s</li>\n", c)
	}
	fmt.Fprint(w, "    </ul>\n</p>\n")
}

func (s *Server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rc := types.RunConfig{
		Category: q.Get("category"),
		Location: q.Get("location"),
	}
	var err error
	if rc.SiteLimit, err = intParam(q.Get("num_of_site"), types.DefaultSiteLimit); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "num_of_site: " + err.Error()})
		return
	}
	if rc.PageLimit, err = intParam(q.Get("num_page"), types.DefaultPageLimit); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "num_page: " + err.Error()})
		return
	}
	opts := engine.RunOptions{UseAltClassifier: q.Get("model") != ""}

	report, err := s.runner.Run(r.Context(), rc, opts)
	switch {
	case err == nil:
		s.jsonResponse(w, http.StatusOK, report)
	case errors.Is(err, types.ErrMissingCategory), errors.Is(err, types.ErrInvalidLimit):
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrHostUnreachable):
		s.logger.Warn("review site unreachable", "category", rc.Category, "error", err)
		s.jsonResponse(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "report": report})
	default:
		if r.Context().Err() == nil {
			s.logger.Error("run failed", "category", rc.Category, "error", err)
		}
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"active_runs": s.runner.ActiveRuns(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, "<h1>404</h1><p>The resource could not be found.</p>")
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}

// intParam parses an optional non-negative integer query parameter.
func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("%d must be zero or positive", n)
	}
	return n, nil
}
