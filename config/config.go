package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	HTTPAddr    string
	GRPCAddr    string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	KafkaBrokers          []string
	KafkaOrderTopic       string
	KafkaFulfillmentTopic string

	JaegerEndpoint string

	JWTSecret     string
	AdminEmail    string
	AdminPassword string

	PayPalBaseURL      string
	PayPalClientID     string
	PayPalClientSecret string
	PayPalCurrency     string

	// Settlement guards for the stock and coupon open questions. Both default
	// to off, which keeps the unconditional decrement/increment behaviour.
	GuardStock  bool
	GuardCoupon bool
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return Config{
		ServiceName: getEnv("SERVICE_NAME", "storefront-service"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":3001"),
		GRPCAddr:    getEnv("GRPC_ADDR", ":50051"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "storefrontdb"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers:          strings.Split(getEnv("KAFKA_BROKER", "localhost:9092"), ","),
		KafkaOrderTopic:       getEnv("KAFKA_ORDER_TOPIC", "order_events"),
		KafkaFulfillmentTopic: getEnv("KAFKA_FULFILLMENT_TOPIC", "fulfillment_events"),

		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),

		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		PayPalBaseURL:      getEnv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		PayPalClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
		PayPalCurrency:     getEnv("PAYPAL_CURRENCY", "USD"),

		GuardStock:  getBool("SETTLEMENT_GUARD_STOCK", false),
		GuardCoupon: getBool("SETTLEMENT_GUARD_COUPON", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}
