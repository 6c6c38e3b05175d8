package config

import (
	"os"
	"strconv"
	"time"

	"ticket-resale/internal/services/bank/jdb"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Negotiation configuration
	ChatLockTTL   time.Duration
	SettlementTTL time.Duration

	// Rate limiting
	ActionRateLimit int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string

	// Bank configuration
	JDBConfig jdb.Config
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Negotiation
		ChatLockTTL:   getEnvAsDuration("CHAT_LOCK_TTL", "3s"),
		SettlementTTL: getEnvAsDuration("SETTLEMENT_TTL", "10m"),

		// Rate limiting
		ActionRateLimit: getEnvAsInt("ACTION_RATE_LIMIT", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),

		// Bank
		JDBConfig: jdb.Config{
			AID:        getEnv("JDB_AID", ""),
			IIN:        getEnv("JDB_IIN", ""),
			ReceiverID: getEnv("JDB_RECEIVER_ID", ""),
			MCC:        getEnv("JDB_MCC", ""),
			CCy:        getEnv("JDB_CCY", "418"),
			Country:    getEnv("JDB_COUNTRY", "LA"),
			MName:      getEnv("JDB_MERCHANT_NAME", ""),
			MCity:      getEnv("JDB_MERCHANT_CITY", "VIENTIANE"),

			PNSubKey:    getEnv("JDB_PN_SUBKEY", ""),
			PNSubSecret: getEnv("JDB_PN_SUBSECRET", ""),
			PNUUID:      getEnv("JDB_PN_UUID", ""),
			PNChannel:   getEnv("JDB_PN_CHANNEL", ""),
			PNCipherKey: getEnv("JDB_PN_CIPHERKEY", ""),

			BaseURL: getEnv("JDB_BASE_URL", ""),

			PartnerID: getEnv("JDB_PARTNER_ID", ""),
			ClientID:  getEnv("JDB_CLIENT_ID", ""),
			ClientKey: getEnv("JDB_CLIENT_KEY", ""),
			HMACKey:   getEnv("JDB_HMAC_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
