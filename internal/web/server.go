// Package web serves the dashboard: client management, analysis
// triggers, report polling, and script editing behind a shared access
// code.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/voxanet/adwin/internal/config"
	"github.com/voxanet/adwin/internal/pipeline"
	"github.com/voxanet/adwin/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Enqueuer feeds jobs to the pipeline.
type Enqueuer interface {
	Enqueue(job pipeline.Job) error
}

// Server is the HTTP layer over the store and the pipeline.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	runner    Enqueuer
	sessions  *sessions
	templates *template.Template
}

// NewServer builds the server with its templates compiled.
func NewServer(cfg *config.Config, st *store.Store, runner Enqueuer) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		cfg:       cfg,
		store:     st,
		runner:    runner,
		sessions:  newSessions(),
		templates: tmpl,
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.auth(s.handleDashboard))

	mux.HandleFunc("POST /clients", s.auth(s.handleCreateClient))
	mux.HandleFunc("DELETE /clients/{id}", s.auth(s.handleDeleteClient))
	mux.HandleFunc("POST /clients/{id}/analyze", s.auth(s.handleAnalyze))
	mux.HandleFunc("POST /clients/{id}/analyze-top", s.auth(s.handleAnalyzeTop))

	mux.HandleFunc("GET /reports/{id}", s.auth(s.handleReport))
	mux.HandleFunc("GET /reports/{id}/status", s.auth(s.handleReportStatus))
	mux.HandleFunc("GET /reports/{id}/scripts", s.auth(s.handleReportScripts))
	mux.HandleFunc("DELETE /reports/{id}", s.auth(s.handleDeleteReport))

	mux.HandleFunc("PATCH /scripts/{id}", s.auth(s.handleEditScript))

	mux.HandleFunc("GET /settings", s.auth(s.handleSettingsPage))
	mux.HandleFunc("POST /settings", s.auth(s.handleSaveSettings))

	storageDir := http.Dir(s.cfg.DataPath("storage"))
	mux.Handle("GET /storage/", s.authHandler(http.StripPrefix("/storage/", http.FileServer(storageDir))))

	return s.logging(mux)
}

// auth gates a handler behind a live session.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.authenticated(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func (s *Server) authHandler(next http.Handler) http.Handler {
	return s.auth(next.ServeHTTP)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		log.Printf("[web] %s %s", r.Method, r.URL.Path)
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("[web] render %s: %v", name, err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
