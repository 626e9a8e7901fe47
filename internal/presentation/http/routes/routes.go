// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/stockapp/stockapp-go/internal/application/container"
	"github.com/stockapp/stockapp-go/internal/presentation/http/handlers"
	"github.com/stockapp/stockapp-go/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(appContainer *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(appContainer.AuthService, appContainer.Logger)
	contentHandlers := handlers.NewContentHandlers(appContainer.ContentService, appContainer.EventService, appContainer.Logger)
	personalizationHandlers := handlers.NewPersonalizationHandlers(appContainer.PersonalizationService, appContainer.FlagBroadcaster, appContainer.Logger)
	eventHandlers := handlers.NewEventHandlers(appContainer.EventService, appContainer.Logger)
	tradingHandlers := handlers.NewTradingHandlers(appContainer.TradingClient, appContainer.EventService, appContainer.PersonalizationService, appContainer.Logger)
	healthHandlers := handlers.NewHealthHandlers(appContainer)

	api := r.Group("/api/v1")
	api.Use(middleware.VisitorMiddleware())
	api.Use(middleware.IdentityMiddleware())
	{
		api.GET("/health", healthHandlers.GetHealth)

		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandlers.PostLogin)
			auth.POST("/signup", authHandlers.PostSignup)
			auth.GET("/me", authHandlers.GetMe)
			auth.POST("/logout", authHandlers.PostLogout)
		}

		// Content is public: anonymous visitors get the default
		// experience, authenticated ones their variants.
		content := api.Group("/content")
		{
			content.GET("/pages/*url", contentHandlers.GetPage)
			content.GET("/stocks", contentHandlers.GetStocks)
			content.GET("/stocks/:symbol", contentHandlers.GetStock)
			content.GET("/sectors", contentHandlers.GetSectors)
			content.GET("/sectors/:uid", contentHandlers.GetSector)
			content.GET("/chrome", contentHandlers.GetChrome)
			content.GET("/entries/:type/:uid", contentHandlers.GetEntry)
		}

		personalization := api.Group("/personalization")
		{
			personalization.GET("/flags", personalizationHandlers.GetFlags)
			personalization.GET("/banner", personalizationHandlers.GetBanner)
			personalization.GET("/variants", personalizationHandlers.GetVariants)
			personalization.POST("/refresh", personalizationHandlers.PostRefresh)
			personalization.POST("/convert", middleware.RequireAuth(), personalizationHandlers.PostConversion)
			personalization.GET("/stream", personalizationHandlers.StreamFlags)
		}

		events := api.Group("/events")
		{
			events.POST("", eventHandlers.PostEvent)
			events.POST("/beacon", eventHandlers.PostBeacon)
		}

		trading := api.Group("/trading")
		trading.Use(middleware.RequireAuth())
		{
			trading.POST("/buy", tradingHandlers.PostBuy)
			trading.POST("/sell", tradingHandlers.PostSell)
			trading.GET("/holdings", tradingHandlers.GetHoldings)
			trading.GET("/portfolio", tradingHandlers.GetPortfolio)
		}

		wallet := api.Group("/wallet")
		wallet.Use(middleware.RequireAuth())
		{
			wallet.GET("", tradingHandlers.GetWallet)
			wallet.POST("/deposit", tradingHandlers.PostDeposit)
			wallet.POST("/withdraw", tradingHandlers.PostWithdraw)
			wallet.GET("/transactions", tradingHandlers.GetTransactions)
		}

		user := api.Group("/user")
		user.Use(middleware.RequireAuth())
		{
			user.GET("/recent-stocks", tradingHandlers.GetRecentStocks)
			user.POST("/recent-stocks/:symbol", tradingHandlers.PostTrackStock)
			user.DELETE("/recent-stocks", tradingHandlers.DeleteRecentStocks)
		}
	}

	return r
}
