package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ytsum/fetch"
	"ytsum/model"
	"ytsum/storage"
)

type ChannelAPI struct {
	channelRepo storage.ChannelRepository
	subRepo     storage.SubscriberRepository
	resolver    fetch.ChannelResolver
	logger      *slog.Logger
}

func NewChannelAPI(channelRepo storage.ChannelRepository, subRepo storage.SubscriberRepository, resolver fetch.ChannelResolver, logger *slog.Logger) *ChannelAPI {
	return &ChannelAPI{
		channelRepo: channelRepo,
		subRepo:     subRepo,
		resolver:    resolver,
		logger:      logger,
	}
}

func (a *ChannelAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	head, _ := ShiftPath(r.URL.Path)

	switch {
	case r.Method == http.MethodGet && head == "":
		a.List(w, r)
	case r.Method == http.MethodPost && head == "":
		a.Follow(w, r)
	case r.Method == http.MethodDelete && head != "":
		a.Unfollow(w, r, model.YoutubeChannelID(head))
	default:
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s with subpath %q was not registered in the channel api", r.Method, head))
	}
}

func (a *ChannelAPI) List(w http.ResponseWriter, _ *http.Request) {
	channels, err := a.channelRepo.FindAll()
	if err != nil {
		a.logger.Error("could not list channels", slog.String("error", err.Error()))
		Error(w, http.StatusInternalServerError, "could not list channels", err)
		return
	}

	type respChannel struct {
		YoutubeID   string `json:"youtube_id"`
		Name        string `json:"name"`
		URL         string `json:"url"`
		LastChecked string `json:"last_checked,omitempty"`
	}
	resp := []respChannel{}
	for _, channel := range channels {
		rc := respChannel{
			YoutubeID: string(channel.YoutubeID),
			Name:      channel.Name,
			URL:       channel.URL,
		}
		if !channel.LastChecked.IsZero() {
			rc.LastChecked = channel.LastChecked.Format(time.RFC3339)
		}
		resp = append(resp, rc)
	}

	jsonBody, err := json.Marshal(resp)
	if err != nil {
		Error(w, http.StatusInternalServerError, "could not marshal response", err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(jsonBody)
}

// Follow resolves the given channel identifier and subscribes the subscriber
// to it. The channel record is created on the first follow and shared from
// then on.
func (a *ChannelAPI) Follow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Channel  string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Username == "" || req.Channel == "" {
		Error(w, http.StatusBadRequest, "invalid request body", fmt.Errorf("username and channel are required"))
		return
	}

	sub, err := a.subRepo.FindByUsername(req.Username)
	if errors.Is(err, storage.ErrNotFound) {
		Error(w, http.StatusNotFound, "unknown subscriber", err)
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "could not find subscriber", err)
		return
	}

	info, err := a.resolver.ResolveChannel(r.Context(), req.Channel)
	if errors.Is(err, fetch.ErrChannelNotFound) {
		Error(w, http.StatusNotFound, "unknown channel", err)
		return
	}
	if err != nil {
		a.logger.Error("could not resolve channel", slog.String("channel", req.Channel), slog.String("error", err.Error()))
		Error(w, http.StatusInternalServerError, "could not resolve channel", err)
		return
	}

	channel, err := a.channelRepo.Follow(sub.ID, model.Channel{
		ID:        uuid.New(),
		YoutubeID: info.YoutubeID,
		Name:      info.Name,
		URL:       info.URL,
		AddedAt:   time.Now(),
	})
	if err != nil {
		Error(w, http.StatusInternalServerError, "could not follow channel", err)
		return
	}

	a.logger.Info("channel followed", slog.String("channel", channel.Name), slog.String("subscriber", sub.Username))
	Message(w, http.StatusOK, "channel followed", string(channel.YoutubeID))
}

// Unfollow drops the subscription. The storage layer removes the channel and
// its videos when the last subscriber leaves.
func (a *ChannelAPI) Unfollow(w http.ResponseWriter, r *http.Request, ytID model.YoutubeChannelID) {
	username := r.URL.Query().Get("username")
	if username == "" {
		Error(w, http.StatusBadRequest, "invalid request", fmt.Errorf("username is required"))
		return
	}

	sub, err := a.subRepo.FindByUsername(username)
	if errors.Is(err, storage.ErrNotFound) {
		Error(w, http.StatusNotFound, "unknown subscriber", err)
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, "could not find subscriber", err)
		return
	}

	if err := a.channelRepo.Unfollow(sub.ID, ytID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			Error(w, http.StatusNotFound, "not following channel", err)
			return
		}
		Error(w, http.StatusInternalServerError, "could not unfollow channel", err)
		return
	}

	Message(w, http.StatusOK, "channel unfollowed", string(ytID))
}
