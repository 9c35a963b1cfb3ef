package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/voxanet/adwin/internal/pipeline"
	"github.com/voxanet/adwin/internal/store"
)

const geminiKeySetting = "gemini_api_key"

type loginData struct {
	Error string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login.html", loginData{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	code := r.FormValue("access_code")
	if subtle.ConstantTimeCompare([]byte(code), []byte(s.cfg.Server.AccessCode)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, "login.html", loginData{Error: "Código de acceso incorrecto"})
		return
	}
	setSessionCookie(w, s.sessions.create())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.revoke(c.Value)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type clientView struct {
	store.Client
	Reports []store.Report
}

type dashboardData struct {
	Clients []clientView
	Flash   string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	clients, err := s.store.ListClients()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]clientView, 0, len(clients))
	for _, c := range clients {
		reports, err := s.store.ListReportsForClient(c.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		views = append(views, clientView{Client: c, Reports: reports})
	}

	s.render(w, "dashboard.html", dashboardData{
		Clients: views,
		Flash:   r.URL.Query().Get("ok"),
	})
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	c := &store.Client{
		Name:        strings.TrimSpace(r.FormValue("name")),
		AccessToken: strings.TrimSpace(r.FormValue("access_token")),
		AdAccountID: strings.TrimSpace(r.FormValue("ad_account_id")),
	}
	if c.Name == "" || c.AccessToken == "" || c.AdAccountID == "" {
		http.Error(w, "nombre, token y cuenta son obligatorios", http.StatusBadRequest)
		return
	}
	if v, err := strconv.ParseFloat(r.FormValue("spend_threshold"), 64); err == nil && v > 0 {
		c.SpendThreshold = &v
	}
	if v, err := strconv.ParseFloat(r.FormValue("cpa_threshold"), 64); err == nil && v > 0 {
		c.CPAThreshold = &v
	}

	if _, err := s.store.CreateClient(c); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/?ok=Cliente+creado", http.StatusSeeOther)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteClient(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// apiKey resolves the analysis key: settings table first, then config.
func (s *Server) apiKey() string {
	if key, err := s.store.GetSetting(geminiKeySetting); err == nil && key != "" {
		return key
	}
	return s.cfg.Analysis.APIKey
}

func (s *Server) enqueueAnalysis(w http.ResponseWriter, r *http.Request, mediaType string, topN int) {
	if s.apiKey() == "" {
		http.Error(w, "Falta la clave de API de Gemini. Configúrala en Ajustes antes de lanzar un análisis.", http.StatusUnprocessableEntity)
		return
	}

	clientID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}
	client, err := s.store.GetClient(clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	reportID, err := s.store.CreateReport(clientID, mediaType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	job := pipeline.Job{ReportID: reportID, Client: *client, MediaType: mediaType, TopN: topN}
	if err := s.runner.Enqueue(job); err != nil {
		if ferr := s.store.FailReport(reportID, err.Error()); ferr != nil {
			log.Printf("[web] fail report %d: %v", reportID, ferr)
		}
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	report, err := s.store.GetReport(reportID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "report_row.html", report)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	mediaType := r.FormValue("media_type")
	if mediaType != "image" && mediaType != "video" {
		http.Error(w, "media_type must be image or video", http.StatusBadRequest)
		return
	}
	s.enqueueAnalysis(w, r, mediaType, 0)
}

func (s *Server) handleAnalyzeTop(w http.ResponseWriter, r *http.Request) {
	count := 3
	if v, err := strconv.Atoi(r.FormValue("count")); err == nil && v > 0 && v <= 10 {
		count = v
	}
	s.enqueueAnalysis(w, r, "top", count)
}

func (s *Server) reportFromPath(w http.ResponseWriter, r *http.Request) (*store.Report, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return nil, false
	}
	report, err := s.store.GetReport(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return nil, false
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return report, true
}

// handleReportStatus is the polling endpoint: 204 while the run is in
// flight, the finished row plus an HX-Trigger once it is terminal.
func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	report, ok := s.reportFromPath(w, r)
	if !ok {
		return
	}
	if !report.Status.Terminal() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("HX-Trigger", "reportComplete")
	s.render(w, "report_row.html", report)
}

type reportPageData struct {
	Report       *store.Report
	AnalysisHTML template.HTML
	ScriptHTML   template.HTML
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.reportFromPath(w, r)
	if !ok {
		return
	}
	s.render(w, "report.html", reportPageData{
		Report:       report,
		AnalysisHTML: template.HTML(report.AnalysisHTML),
		ScriptHTML:   template.HTML(report.ScriptHTML),
	})
}

type scriptsPageData struct {
	Report  *store.Report
	Scripts []scriptView
	Errors  []store.AnalysisError
}

type scriptView struct {
	store.AdScript
	DisplayHTML template.HTML
}

func (s *Server) handleReportScripts(w http.ResponseWriter, r *http.Request) {
	report, ok := s.reportFromPath(w, r)
	if !ok {
		return
	}
	scripts, err := s.store.ListAdScripts(report.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	analysisErrors, err := s.store.ListAnalysisErrors(report.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	views := make([]scriptView, 0, len(scripts))
	for _, sc := range scripts {
		html := sc.ScriptHTML
		if sc.EditedHTML != "" {
			html = sc.EditedHTML
		}
		views = append(views, scriptView{AdScript: sc, DisplayHTML: template.HTML(html)})
	}

	s.render(w, "scripts.html", scriptsPageData{Report: report, Scripts: views, Errors: analysisErrors})
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.reportFromPath(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteReport(report.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleEditScript(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid script id", http.StatusBadRequest)
		return
	}

	var payload struct {
		EditedHTML string `json:"edited_html"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if err := s.store.UpdateAdScriptEdit(id, payload.EditedHTML); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsData struct {
	KeyConfigured bool
	Flash         string
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "settings.html", settingsData{
		KeyConfigured: s.apiKey() != "",
		Flash:         r.URL.Query().Get("ok"),
	})
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	key := strings.TrimSpace(r.FormValue("gemini_api_key"))
	if key != "" {
		if err := s.store.SetSetting(geminiKeySetting, key); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	http.Redirect(w, r, "/settings?ok=Ajustes+guardados", http.StatusSeeOther)
}
