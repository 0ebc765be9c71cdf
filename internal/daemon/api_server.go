package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"newsreel/internal/artifacts"
	"newsreel/internal/config"
	"newsreel/internal/history"
	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/pipeline"
	"newsreel/internal/profiles"
	"newsreel/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("POST /api/generate", srv.handleGenerate)
	mux.HandleFunc("GET /api/runs", srv.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", srv.handleRun)
	mux.HandleFunc("GET /api/runs/{id}/events", srv.handleRunEvents)
	mux.HandleFunc("GET /api/artifacts", srv.handleArtifacts)
	mux.HandleFunc("DELETE /api/artifacts/{name}", srv.handleArtifactDelete)
	mux.HandleFunc("POST /api/artifacts/{name}/email", srv.handleArtifactEmail)
	mux.HandleFunc("GET /api/profiles", srv.handleProfiles)
	mux.HandleFunc("POST /api/profiles", srv.handleProfileCreate)
	mux.HandleFunc("DELETE /api/profiles/{id}", srv.handleProfileDelete)
	mux.HandleFunc("POST /api/profiles/{id}/switch", srv.handleProfileSwitch)
	mux.HandleFunc("POST /api/profiles/{id}/sources", srv.handleProfileSources)
	mux.HandleFunc("POST /api/profiles/{id}/custom-source", srv.handleCustomSourceAdd)
	mux.HandleFunc("DELETE /api/profiles/{id}/custom-source", srv.handleCustomSourceRemove)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

type generateResponse struct {
	RunID    string                  `json:"run_id"`
	Status   string                  `json:"status"`
	Artifact string                  `json:"artifact,omitempty"`
	Duration float64                 `json:"duration_seconds"`
	Outcomes []history.SourceOutcome `json:"outcomes"`
	Error    string                  `json:"error,omitempty"`
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.daemon.orch.Generate(r.Context())
	if errors.Is(err, pipeline.ErrRunInProgress) {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	payload := generateResponse{
		RunID:    outcome.RunID,
		Status:   outcome.Status,
		Artifact: outcome.Artifact,
		Duration: outcome.Duration.Seconds(),
		Outcomes: outcome.Outcomes,
	}
	if err != nil {
		payload.Error = services.Describe(err).Code
		s.writeJSON(w, http.StatusUnprocessableEntity, payload)
		return
	}
	s.writeJSON(w, http.StatusOK, payload)
}

type runView struct {
	ID              string                  `json:"id"`
	Profile         string                  `json:"profile"`
	Status          string                  `json:"status"`
	Error           string                  `json:"error,omitempty"`
	Artifact        string                  `json:"artifact,omitempty"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Outcomes        []history.SourceOutcome `json:"outcomes"`
	StartedAt       time.Time               `json:"started_at"`
	FinishedAt      *time.Time              `json:"finished_at,omitempty"`
}

func viewRun(run history.Run) runView {
	return runView{
		ID:              run.ID,
		Profile:         run.Profile,
		Status:          run.Status,
		Error:           run.ErrorMessage,
		Artifact:        run.Artifact,
		DurationSeconds: run.DurationSeconds,
		Outcomes:        run.Outcomes,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
	}
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	runs, err := s.daemon.history.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, viewRun(run))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": views})
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.daemon.history.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, history.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, viewRun(run))
}

// handleRunEvents streams a run's progress as server-sent events, starting
// with the recorded backlog. The stream ends at the run's terminal event.
func (s *apiServer) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	runID := r.PathValue("id")

	replay, live, cancel := s.daemon.hub.Subscribe(runID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(event notifications.Event) bool {
		data, err := json.Marshal(event)
		if err != nil {
			return false
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
		flusher.Flush()
		return !event.Terminal()
	}

	for _, event := range replay {
		if !writeEvent(event) {
			return
		}
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-live:
			if !ok {
				return
			}
			if !writeEvent(event) {
				return
			}
		}
	}
}

type artifactView struct {
	Name     string              `json:"name"`
	Size     int64               `json:"size"`
	ModTime  time.Time           `json:"mod_time"`
	Metadata *artifacts.Metadata `json:"metadata,omitempty"`
}

func (s *apiServer) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	list, err := s.daemon.artifacts.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]artifactView, 0, len(list))
	for _, artifact := range list {
		views = append(views, artifactView{
			Name:     artifact.Name,
			Size:     artifact.Size,
			ModTime:  artifact.ModTime,
			Metadata: artifact.Metadata,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"artifacts": views})
}

func (s *apiServer) handleArtifactDelete(w http.ResponseWriter, r *http.Request) {
	err := s.daemon.artifacts.Delete(r.PathValue("name"))
	if errors.Is(err, artifacts.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *apiServer) handleArtifactEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipient string `json:"recipient"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	artifact, err := s.daemon.artifacts.Get(r.PathValue("name"))
	if errors.Is(err, artifacts.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profileName := ""
	if artifact.Metadata != nil {
		profileName = artifact.Metadata.Profile
	}
	if err := s.daemon.mailer.Send(r.Context(), artifact.Path, profileName, req.Recipient); err != nil {
		if errors.Is(err, services.ErrDeliveryRejected) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (s *apiServer) handleProfiles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.profiles.Document())
}

func (s *apiServer) handleProfileCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.daemon.profiles.Create(req.ID, req.Name)
	if err != nil {
		s.writeProfileError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"profile_id": id})
}

func (s *apiServer) handleProfileDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.profiles.Delete(r.PathValue("id")); err != nil {
		s.writeProfileError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *apiServer) handleProfileSwitch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.daemon.profiles.Switch(id); err != nil {
		s.writeProfileError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"active_profile": id})
}

func (s *apiServer) handleProfileSources(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sources map[string]profiles.Source `json:"sources"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.profiles.UpdateSources(r.PathValue("id"), req.Sources); err != nil {
		s.writeProfileError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *apiServer) handleCustomSourceAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		URL         string `json:"url"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.profiles.AddCustomSource(r.PathValue("id"), req.Name, req.URL, req.Description); err != nil {
		s.writeProfileError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"source": req.Name})
}

func (s *apiServer) handleCustomSourceRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.profiles.RemoveSource(r.PathValue("id"), req.Name); err != nil {
		s.writeProfileError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *apiServer) writeProfileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profiles.ErrProfileNotFound), errors.Is(err, profiles.ErrSourceNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, profiles.ErrProfileExists):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, profiles.ErrDefaultProtected), errors.Is(err, profiles.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON treats an absent body as an empty request object, so endpoints
// with all-optional fields accept a bare POST.
func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}
