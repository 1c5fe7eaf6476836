package main

import (
	"context"
	"os"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/rs/zerolog"
	"github.com/techagentng/quizchat/config"
	"github.com/techagentng/quizchat/db"
	"github.com/techagentng/quizchat/realtime"
	"github.com/techagentng/quizchat/server"
	"github.com/techagentng/quizchat/services"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	conf, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if conf.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores, err := db.Open(ctx, conf)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", conf.StoreDriver).Msg("open store")
	}

	hub := realtime.NewHub(logger)
	var (
		sinks          []realtime.Sink
		relay          *realtime.RedisRelay
		rateLimitStore ratelimit.Store
	)
	sendLimit := ratelimit.InMemoryOptions{Rate: time.Minute, Limit: conf.SendMessageRateLimit}

	if conf.RedisURL != "" {
		redisClient, err := realtime.NewRedisClient(ctx, conf.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		relay = realtime.NewRedisRelay(redisClient, realtime.DefaultChannel, hub, logger)
		sinks = append(sinks, relay)
		rateLimitStore = ratelimit.RedisStore(&ratelimit.RedisOptions{
			RedisClient: redisClient,
			Rate:        sendLimit.Rate,
			Limit:       sendLimit.Limit,
		})
		logger.Info().Msg("redis relay enabled")
	} else {
		sinks = append(sinks, hub)
		rateLimitStore = ratelimit.InMemoryStore(&sendLimit)
	}

	if conf.FirebaseCredentials != "" {
		messenger, err := realtime.NewFirebaseMessenger(ctx, conf.FirebaseCredentials)
		if err != nil {
			logger.Fatal().Err(err).Msg("initialize firebase messaging")
		}
		sinks = append(sinks, realtime.NewPushSink(messenger))
		logger.Info().Msg("push notifications enabled")
	}

	dispatcher := realtime.NewDispatcher(logger, sinks...)

	objectStore, err := services.NewS3Store(ctx, conf)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialize s3")
	}

	conversationService := services.NewConversationService(stores.Conversations, dispatcher, logger, conf)
	messageService := services.NewMessageService(stores.Messages, stores.Conversations, conversationService, dispatcher, logger, conf)
	postService := services.NewPostService(stores.Posts, logger, conf)
	mediaService := services.NewMediaService(objectStore, logger)

	s := &server.Server{
		Config:              conf,
		Logger:              logger,
		Stores:              stores,
		ConversationService: conversationService,
		MessageService:      messageService,
		PostService:         postService,
		MediaService:        mediaService,
		Hub:                 hub,
		Dispatcher:          dispatcher,
		Relay:               relay,
		RateLimitStore:      rateLimitStore,
	}
	s.Start()
}
