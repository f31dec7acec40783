package bootstrap

import (
	"context"
	"log"

	"campus-dining-be/internal/cache"
	"campus-dining-be/internal/config"
	"campus-dining-be/internal/pkg/logger"
	"campus-dining-be/internal/repository/unitofwork"
	"campus-dining-be/internal/service"
	"campus-dining-be/pkg/embedding"
	"campus-dining-be/pkg/events"

	pktNats "campus-dining-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Request-facing services
	RecommendationService service.IRecommendationService
	EventService          service.IEventService
	FeatureService        service.IFeatureService
	EmbeddingService      service.IEmbeddingService

	// Background services (exposed for main.go to run)
	ConsumerService   service.IConsumerService
	ExperimentService service.IExperimentService
	EmbeddingProvider *embedding.RemoteProvider

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(cfg.Recommend.RefreshQueueDepth)},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS event sink; a dead broker degrades to dropping behavior events.
	var sink events.Sink
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v. Behavior events disabled", err)
		sink = events.NoopSink{}
	} else {
		sink = natsPub
	}

	// Redis; a dead instance degrades to the in-process cache.
	var cacheStore cache.Cache
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Using in-memory cache", err)
		cacheStore = cache.NewMemoryCache()
	} else {
		cacheStore = cache.NewRedisCache(rdb)
	}

	// External embedding model
	provider := embedding.NewRemoteProvider(cfg.Embedder.BaseURL, cfg.Embedder.Version, cfg.Embedder.Timeout)

	// 3. Services
	publisherService := service.NewPublisherService(pubSub, cfg.Recommend.RefreshTopic)
	featureService := service.NewFeatureService(uowFactory, cacheStore, sysLogger)
	embeddingService := service.NewEmbeddingService(uowFactory, cacheStore, provider, sysLogger)
	experimentService := service.NewExperimentService(
		uowFactory,
		cacheStore,
		cfg.Recommend.ExperimentRefreshDebounce,
		sysLogger,
	)
	recallService := service.NewRecallService(uowFactory, embeddingService, sysLogger)

	recommendationService := service.NewRecommendationService(
		featureService,
		embeddingService,
		recallService,
		experimentService,
		cacheStore,
		sink,
		sysLogger,
	)
	eventService := service.NewEventService(
		featureService,
		publisherService,
		cacheStore,
		sink,
		sysLogger,
	)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Recommend.RefreshTopic,
		uowFactory,
		featureService,
		embeddingService,
		publisherService,
		provider,
		sysLogger,
	)

	return &Container{
		RecommendationService: recommendationService,
		EventService:          eventService,
		FeatureService:        featureService,
		EmbeddingService:      embeddingService,
		ConsumerService:       consumerService,
		ExperimentService:     experimentService,
		EmbeddingProvider:     provider,
		Logger:                sysLogger,
	}
}
