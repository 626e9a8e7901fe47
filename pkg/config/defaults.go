// Package config provides centralized default values for StockApp
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

// loadEnvFile loads .env overrides once. Variables already present in
// the environment win over file values.
func loadEnvFile() {
	envLoaded.Do(func() {
		if err := godotenv.Load(); err == nil {
			log.Println("Loading configuration overrides from .env file...")
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// CMS Delivery API
	CMSAPIKey        string
	CMSDeliveryToken string
	CMSEnvironment   string
	CMSRegion        string
	CMSBaseURL       string
	CMSFetchTimeout  time.Duration

	// Personalization Edge
	PersonalizeProjectUID  string
	PersonalizeEdgeURL     string
	PersonalizeInitTimeout time.Duration

	// Behavioral Analytics (Lytics)
	LyticsAPIURL     string
	LyticsCollectURL string
	LyticsStream     string

	// Segment Resolution
	SegmentTimeout         time.Duration
	ClientReadyInterval    time.Duration
	ClientReadyMaxAttempts int

	// Event Emission
	EventQueueSize     int
	EventMaxAttempts   int
	EventRetryInterval time.Duration

	// Personalization Session Store
	SessionTTL             time.Duration
	SessionCleanupInterval time.Duration

	// Trading Backend
	TradingAPIURL  string
	TradingTimeout time.Duration

	// Auth
	JWTSecret string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// CMS Delivery API
	CMSAPIKey = getEnvString("CMS_API_KEY", "")
	CMSDeliveryToken = getEnvString("CMS_DELIVERY_TOKEN", "")
	CMSEnvironment = getEnvString("CMS_ENVIRONMENT", "prod")
	CMSRegion = getEnvString("CMS_REGION", "eu")
	CMSBaseURL = getEnvString("CMS_BASE_URL", fmt.Sprintf("https://%s-cdn.contentstack.com/v3", CMSRegion))
	CMSFetchTimeout = getEnvDuration("CMS_FETCH_TIMEOUT", 10*time.Second)

	// Personalization Edge
	PersonalizeProjectUID = getEnvString("PERSONALIZE_PROJECT_UID", "")
	PersonalizeEdgeURL = getEnvString("PERSONALIZE_EDGE_URL", fmt.Sprintf("https://%s-personalize-edge.contentstack.com", CMSRegion))
	PersonalizeInitTimeout = getEnvDuration("PERSONALIZE_INIT_TIMEOUT", 5*time.Second)

	// Behavioral Analytics
	LyticsAPIURL = getEnvString("LYTICS_API_URL", "https://api.lytics.io")
	LyticsCollectURL = getEnvString("LYTICS_COLLECT_URL", "https://c.lytics.io")
	LyticsStream = getEnvString("LYTICS_STREAM", "")

	// Segment Resolution
	SegmentTimeout = getEnvDuration("SEGMENT_TIMEOUT", 3*time.Second)
	ClientReadyInterval = getEnvDuration("CLIENT_READY_INTERVAL", 100*time.Millisecond)
	ClientReadyMaxAttempts = getEnvInt("CLIENT_READY_MAX_ATTEMPTS", 50)

	// Event Emission
	EventQueueSize = getEnvInt("EVENT_QUEUE_SIZE", 256)
	EventMaxAttempts = getEnvInt("EVENT_MAX_ATTEMPTS", 50)
	EventRetryInterval = getEnvDuration("EVENT_RETRY_INTERVAL", 100*time.Millisecond)

	// Personalization Session Store
	SessionTTL = getEnvDuration("SESSION_TTL", 30*time.Minute)
	SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute)

	// Trading Backend
	TradingAPIURL = getEnvString("TRADING_API_URL", "http://localhost:5000")
	TradingTimeout = getEnvDuration("TRADING_TIMEOUT", 15*time.Second)

	// Auth
	JWTSecret = getEnvString("JWT_SECRET", "")
}
