package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ytsum/fetch"
	"ytsum/handler"
	"ytsum/notify"
	"ytsum/process"
	"ytsum/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// optional, the environment itself wins
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Error("unable to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	postgres, err := storage.NewPostgres(storage.PostgresInfo{
		Host:     getParam("POSTGRES_HOST", "localhost"),
		Port:     getParam("POSTGRES_PORT", "5432"),
		User:     getParam("POSTGRES_USER", "ytsum"),
		Password: getParam("POSTGRES_PASSWORD", "ytsum"),
		Database: getParam("POSTGRES_DB", "ytsum"),
	})
	if err != nil {
		logger.Error("unable to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store := process.Store{
		Channels:    storage.NewPostgresChannelRepository(postgres),
		Subscribers: storage.NewPostgresSubscriberRepository(postgres),
		Videos:      storage.NewPostgresVideoRepository(postgres),
		Transcripts: storage.NewPostgresTranscriptRepository(postgres),
		Summaries:   storage.NewPostgresSummaryRepository(postgres),
		Runs:        storage.NewPostgresRunHistoryRepository(postgres),
		Queue:       storage.NewPostgresNotificationQueue(postgres),
	}

	ytClient, err := youtube.NewService(ctx, option.WithAPIKey(getParam("YOUTUBE_API_KEY", "")))
	if err != nil {
		logger.Error("unable to create youtube service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	yt := fetch.NewYoutube(ytClient)

	timedtext, err := fetch.NewTimedtext(fetch.TimedtextConfig{
		ProxyURLs: splitParam(getParam("PROXY_URLS", "")),
		RateLimit: floatParam("PROXY_RATE_LIMIT", 2.0, logger),
	})
	if err != nil {
		logger.Error("unable to create transcript client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	summarizer := process.NewOpenRouter(
		getParam("OPENROUTER_API_KEY", ""),
		getParam("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		getParam("OPENROUTER_MODEL", "anthropic/claude-3.5-sonnet"),
	)

	clients := process.Clients{
		Metadata:   yt,
		Transcript: timedtext,
		Summarizer: summarizer,
	}

	if endpoint := getParam("MINIFLUX_ENDPOINT", ""); endpoint != "" {
		clients.Feed = fetch.NewMiniflux(fetch.MinifluxInfo{
			Endpoint: endpoint,
			ApiKey:   getParam("MINIFLUX_APIKEY", ""),
		})
		logger.Info("feed discovery enabled", slog.String("endpoint", endpoint))
	}

	if host := getParam("WEAVIATE_HOST", ""); host != "" {
		weaviate, err := storage.NewWeaviate(host, getParam("WEAVIATE_APIKEY", ""), getParam("OPENAI_API_KEY", ""))
		if err != nil {
			logger.Error("unable to create weaviate client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		clients.Index = weaviate
		logger.Info("summary indexing enabled", slog.String("host", host))
	}

	limits := process.DefaultLimits()
	limits.SummaryBaseURL = getParam("SUMMARY_BASE_URL", limits.SummaryBaseURL)

	pipeline := process.NewPipeline(store, clients, limits, logger)

	schedulerConfig := process.DefaultSchedulerConfig()
	if interval, err := time.ParseDuration(getParam("CHECK_INTERVAL", "30m")); err == nil {
		schedulerConfig.Interval = interval
	} else {
		logger.Error("unable to parse check interval", slog.String("error", err.Error()))
		os.Exit(1)
	}
	scheduler := process.NewScheduler(pipeline, schedulerConfig, logger)
	go scheduler.Run(ctx)

	if token := getParam("TELEGRAM_BOT_TOKEN", ""); token != "" {
		telegram, err := notify.NewTelegram(token)
		if err != nil {
			logger.Error("unable to create telegram bot", slog.String("error", err.Error()))
			os.Exit(1)
		}
		worker := notify.NewWorker(store.Queue, telegram, 30*time.Second, logger)
		go worker.Run(ctx)
	} else {
		logger.Info("no telegram bot token set, notifications stay queued")
	}

	port, err := strconv.Atoi(getParam("API_PORT", "8080"))
	if err != nil {
		logger.Error("invalid port", slog.String("error", err.Error()))
		os.Exit(1)
	}
	server := handler.NewServer(store.Videos, store.Runs, store.Channels, store.Subscribers, yt, logger)
	go http.ListenAndServe(fmt.Sprintf(":%d", port), server)
	logger.Info("http server started", slog.Int("port", port))

	<-ctx.Done()
	logger.Info("service stopped")
}

func getParam(param, def string) string {
	if val, ok := os.LookupEnv(param); ok {
		return val
	}
	return def
}

func splitParam(val string) []string {
	if val == "" {
		return nil
	}
	parts := []string{}
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func floatParam(param string, def float64, logger *slog.Logger) float64 {
	val, ok := os.LookupEnv(param)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		logger.Error("invalid value, using default", slog.String("param", param), slog.String("value", val))
		return def
	}
	return parsed
}
