package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ytsum/storage"
)

type RunAPI struct {
	runRepo storage.RunHistoryRepository
	logger  *slog.Logger
}

func NewRunAPI(runRepo storage.RunHistoryRepository, logger *slog.Logger) *RunAPI {
	return &RunAPI{
		runRepo: runRepo,
		logger:  logger,
	}
}

func (a *RunAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	head, _ := ShiftPath(r.URL.Path)

	switch {
	case r.Method == http.MethodGet && head == "":
		a.List(w, r)
	default:
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s with subpath %q was not registered in the run api", r.Method, head))
	}
}

func (a *RunAPI) List(w http.ResponseWriter, _ *http.Request) {
	runs, err := a.runRepo.FindRecent(50)
	if err != nil {
		a.logger.Error("could not list run history", slog.String("error", err.Error()))
		Error(w, http.StatusInternalServerError, "could not list run history", err)
		return
	}

	type respRun struct {
		StartedAt       string   `json:"started_at"`
		VideosFound     int      `json:"videos_found"`
		VideosProcessed int      `json:"videos_processed"`
		Errors          []string `json:"errors"`
		Success         bool     `json:"success"`
		DurationSeconds int      `json:"duration_seconds"`
	}
	resp := []respRun{}
	for _, run := range runs {
		resp = append(resp, respRun{
			StartedAt:       run.StartedAt.Format(time.RFC3339),
			VideosFound:     run.VideosFound,
			VideosProcessed: run.VideosProcessed,
			Errors:          run.Errors,
			Success:         run.Success,
			DurationSeconds: run.DurationSeconds,
		})
	}

	jsonBody, err := json.Marshal(resp)
	if err != nil {
		Error(w, http.StatusInternalServerError, "could not marshal response", err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(jsonBody)
}
