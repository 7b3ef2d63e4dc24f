package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type API struct {
	Addr        string
	CORSOrigins []string
}

type Market struct {
	// MatchInterval is the period of the matching cycle: orders submitted
	// during one interval are crossed together at its end.
	MatchInterval time.Duration
	GoodsFile     string // optional YAML catalog
}

type Storage struct {
	DataDir string // pebble trade journal; empty keeps trades in memory
}

type Kafka struct {
	Brokers []string // empty disables publishing
	Topic   string
}

type Feeder struct {
	Enabled       bool
	OrdersPerTick int
	Interval      time.Duration
	NumAgents     int
}

type Config struct {
	API     API
	Market  Market
	Storage Storage
	Kafka   Kafka
	Feeder  Feeder
	LogFile string
	Verbose bool
}

func Default() Config {
	return Config{
		API: API{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Market: Market{
			MatchInterval: time.Second,
		},
		Storage: Storage{
			DataDir: "data/trades",
		},
		Kafka: Kafka{
			Topic: "trades",
		},
		Feeder: Feeder{
			OrdersPerTick: 10,
			Interval:      100 * time.Millisecond,
			NumAgents:     50,
		},
		LogFile: "data/marketd.log",
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.CORSOrigins = splitList(origins)
	}

	if ms, ok := getEnvInt("MATCH_INTERVAL_MS"); ok && ms > 0 {
		cfg.Market.MatchInterval = time.Duration(ms) * time.Millisecond
	}
	cfg.Market.GoodsFile = getEnv("GOODS_FILE", cfg.Market.GoodsFile)

	if dir, ok := os.LookupEnv("DATA_DIR"); ok {
		cfg.Storage.DataDir = dir
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Feeder.Enabled = os.Getenv("ENABLE_FEEDER") == "true"
	if n, ok := getEnvInt("FEEDER_ORDERS_PER_TICK"); ok && n > 0 {
		cfg.Feeder.OrdersPerTick = n
	}
	if ms, ok := getEnvInt("FEEDER_INTERVAL_MS"); ok && ms > 0 {
		cfg.Feeder.Interval = time.Duration(ms) * time.Millisecond
	}
	if n, ok := getEnvInt("FEEDER_AGENTS"); ok && n > 0 {
		cfg.Feeder.NumAgents = n
	}

	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.Verbose = os.Getenv("VERBOSE") == "true"

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
