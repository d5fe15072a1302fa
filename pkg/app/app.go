// Package app wires configuration into a ready event handler. The HTTP
// server and the Lambda entrypoint share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/savaki/linebot-assistant/pkg/bedrock"
	"github.com/savaki/linebot-assistant/pkg/calendar"
	"github.com/savaki/linebot-assistant/pkg/config"
	"github.com/savaki/linebot-assistant/pkg/dynamodb"
	"github.com/savaki/linebot-assistant/pkg/firebase"
	"github.com/savaki/linebot-assistant/pkg/flow"
	"github.com/savaki/linebot-assistant/pkg/gemini"
	"github.com/savaki/linebot-assistant/pkg/handler"
	"github.com/savaki/linebot-assistant/pkg/line"
	"github.com/savaki/linebot-assistant/pkg/logging"
	"github.com/savaki/linebot-assistant/pkg/metrics"
	"github.com/savaki/linebot-assistant/pkg/redisstore"
	"github.com/savaki/linebot-assistant/pkg/transcript"
)

// App holds the wired handler and the resources to release on shutdown
type App struct {
	Handler *handler.EventHandler
	Metrics *metrics.BotMetrics

	writer  *transcript.AsyncWriter
	closers []func() error
	logger  *logging.Logger
}

// New builds every collaborator named by cfg
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	a := &App{
		Metrics: metrics.New(reg),
		logger:  logger,
	}

	lineClient, err := line.NewClient(cfg.LineChannelAccessToken)
	if err != nil {
		return nil, err
	}

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel,
		gemini.WithLogger(logger.With("component", "gemini")),
		gemini.WithObserver(a.Metrics),
	)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, geminiClient.Close)

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
			if err != nil {
				return aws.Config{}, fmt.Errorf("load aws config: %w", err)
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	var generator handler.Generator = geminiClient
	if cfg.LLMProvider == config.ProviderBedrock {
		c, err := loadAWS()
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		bedrockClient := bedrock.NewClient(c)
		bedrockClient.SetModel(cfg.BedrockModelID)
		bedrockClient.SetObserver(a.Metrics)
		generator = bedrockClient
	}

	store, closeStore, err := newStore(cfg, loadAWS)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	a.writer = transcript.NewAsyncWriter(store, cfg.AsyncWriteQueueSize,
		logger.With("component", "transcript"),
		transcript.WithObserver(a.Metrics),
	)

	machine := flow.NewMachine(geminiClient, logger.With("component", "flow"),
		flow.WithObserver(a.Metrics),
		flow.WithSessionTTL(cfg.GetInactivityTimeout()),
	)

	a.Handler = handler.NewEventHandler(handler.Deps{
		ChannelSecret: cfg.LineChannelSecret,
		Gateway:       lineClient,
		Generator:     generator,
		Extractor:     geminiClient,
		Shortener:     calendar.NewShortener(cfg.ReurlAPIKey, "", nil),
		Store:         a.writer,
		Flow:          machine,
		Metrics:       a.Metrics,
		Logger:        logger.With("component", "handler"),
	})

	logger.Info("application wired",
		"store", cfg.StoreBackend,
		"llm_provider", cfg.LLMProvider,
		"gemini_model", cfg.GeminiModel,
	)
	return a, nil
}

// Flush waits for queued transcript writes to land
func (a *App) Flush(ctx context.Context) error {
	if a.writer == nil {
		return nil
	}
	return a.writer.Flush(ctx)
}

// Close drains queued transcript writes and releases clients
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.writer != nil {
		if err := a.writer.Close(ctx); err != nil && !errors.Is(err, transcript.ErrWriterClosed) {
			errs = append(errs, fmt.Errorf("drain transcript writes: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newStore opens the transcript backend selected by cfg
func newStore(cfg *config.Config, loadAWS func() (aws.Config, error)) (transcript.Store, func() error, error) {
	switch cfg.StoreBackend {
	case config.StoreFirebase:
		client, err := firebase.NewClient(cfg.FirebaseURL, nil)
		if err != nil {
			return nil, nil, err
		}
		return firebase.NewTranscriptStore(client), nil, nil

	case config.StoreDynamoDB:
		c, err := loadAWS()
		if err != nil {
			return nil, nil, err
		}
		client := dynamodb.NewClientWithConfig(c)
		return dynamodb.NewTranscriptRepository(client, cfg.ConversationsTable, cfg.GetConversationTTL()), nil, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		return redisstore.NewTranscriptStore(client, cfg.GetConversationTTL()), client.Close, nil

	case config.StoreMemory:
		return transcript.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}
