package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"ytsum/storage"
)

const defaultListLimit = 20

type VideoAPI struct {
	videoRepo storage.VideoRepository
	logger    *slog.Logger
}

func NewVideoAPI(videoRepo storage.VideoRepository, logger *slog.Logger) *VideoAPI {
	return &VideoAPI{
		videoRepo: videoRepo,
		logger:    logger,
	}
}

func (v *VideoAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	videoID, _ := ShiftPath(r.URL.Path)

	switch {
	case r.Method == http.MethodGet && videoID == "":
		v.List(w, r)
	default:
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s with subpath %q was not registered in the video api", r.Method, videoID))
	}
}

func (v *VideoAPI) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if param := r.URL.Query().Get("limit"); param != "" {
		val, err := strconv.Atoi(param)
		if err != nil || val < 1 {
			Error(w, http.StatusBadRequest, "invalid limit", fmt.Errorf("limit %q is not a positive number", param))
			return
		}
		limit = val
	}

	videos, err := v.videoRepo.Summarized(limit)
	if err != nil {
		v.logger.Error("could not list videos", slog.String("error", err.Error()))
		Error(w, http.StatusInternalServerError, "could not list videos", err)
		return
	}

	type respVideo struct {
		YoutubeID string   `json:"youtube_id"`
		Title     string   `json:"title"`
		Channel   string   `json:"channel"`
		URL       string   `json:"url"`
		Duration  string   `json:"duration"`
		Summary   string   `json:"summary"`
		KeyPoints []string `json:"key_points"`
		Model     string   `json:"model"`
	}
	resp := []respVideo{}
	for _, video := range videos {
		resp = append(resp, respVideo{
			YoutubeID: string(video.YoutubeID),
			Title:     video.Title,
			Channel:   video.ChannelName,
			URL:       video.URL,
			Duration:  video.Duration,
			Summary:   video.Summary.Text,
			KeyPoints: video.Summary.KeyPoints,
			Model:     video.Summary.Model,
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
