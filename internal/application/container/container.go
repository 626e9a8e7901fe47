// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/stockapp/stockapp-go/internal/application/services"
	"github.com/stockapp/stockapp-go/internal/infrastructure/cms"
	"github.com/stockapp/stockapp-go/internal/infrastructure/lytics"
	"github.com/stockapp/stockapp-go/internal/infrastructure/messaging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/observability/logging"
	"github.com/stockapp/stockapp-go/internal/infrastructure/personalize"
	"github.com/stockapp/stockapp-go/internal/infrastructure/trading"
	"github.com/stockapp/stockapp-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services (stateless singletons)
	SegmentService         *services.SegmentService
	EventService           *services.EventService
	PersonalizationService *services.PersonalizationService
	ContentService         *services.ContentService
	AuthService            *services.AuthService

	// Infrastructure dependencies
	CMSClient       *cms.Client
	AnalyticsClient *lytics.Client
	EdgeClient      *personalize.EdgeClient
	SessionStore    *personalize.SessionStore
	TradingClient   *trading.Client
	FlagBroadcaster *messaging.FlagBroadcaster

	Logger *logging.ChanneledLogger
}

// NewContainer creates and wires all singleton services
func NewContainer() (*Container, error) {
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return nil, err
	}

	analyticsClient := lytics.NewClient(config.LyticsAPIURL, config.LyticsCollectURL, config.LyticsStream, config.SegmentTimeout, logger)
	cmsClient := cms.NewClient(config.CMSBaseURL, config.CMSAPIKey, config.CMSDeliveryToken, config.CMSEnvironment, config.CMSFetchTimeout, logger)
	edgeClient := personalize.NewEdgeClient(config.PersonalizeEdgeURL, config.PersonalizeProjectUID, config.PersonalizeInitTimeout, logger)
	sessionStore := personalize.NewSessionStore(edgeClient, config.SessionTTL, logger)
	tradingClient := trading.NewClient(config.TradingAPIURL, config.TradingTimeout, logger)
	flagBroadcaster := messaging.NewFlagBroadcaster(logger)

	segmentService := services.NewSegmentService(analyticsClient, config.SegmentTimeout, logger)
	eventService := services.NewEventService(analyticsClient, config.EventQueueSize, config.EventMaxAttempts, config.EventRetryInterval, logger)
	personalizationService := services.NewPersonalizationService(segmentService, sessionStore, flagBroadcaster, logger)
	contentService := services.NewContentService(cmsClient, personalizationService, logger)
	authService := services.NewAuthService(tradingClient, eventService, personalizationService, logger)

	return &Container{
		SegmentService:         segmentService,
		EventService:           eventService,
		PersonalizationService: personalizationService,
		ContentService:         contentService,
		AuthService:            authService,

		CMSClient:       cmsClient,
		AnalyticsClient: analyticsClient,
		EdgeClient:      edgeClient,
		SessionStore:    sessionStore,
		TradingClient:   tradingClient,
		FlagBroadcaster: flagBroadcaster,

		Logger: logger,
	}, nil
}
