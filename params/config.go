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

type Storage struct {
	DBPath  string
	LogFile string
}

type Cleanup struct {
	// HourUTC is when the daily purge of pending limit orders runs.
	// Pick an off-peak hour; the default is midnight UTC.
	HourUTC int
}

type Market struct {
	Symbols       []string
	QuoteInterval time.Duration
}

type Config struct {
	API     API
	Storage Storage
	Cleanup Cleanup
	Market  Market
}

func Default() Config {
	return Config{
		API: API{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Storage: Storage{
			DBPath:  "data/tradesim.db",
			LogFile: "data/tradesim.log",
		},
		Cleanup: Cleanup{
			HourUTC: 0,
		},
		Market: Market{
			Symbols:       []string{"AAPL", "TSLA", "BTC-USD", "ETH-USD"},
			QuoteInterval: 2 * time.Second,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.API.Addr = addr
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.CORSOrigins = strings.Split(origins, ",")
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
	if path := os.Getenv("LOG_FILE"); path != "" {
		cfg.Storage.LogFile = path
	}
	if hour := os.Getenv("CLEANUP_HOUR_UTC"); hour != "" {
		if h, err := strconv.Atoi(hour); err == nil && h >= 0 && h <= 23 {
			cfg.Cleanup.HourUTC = h
		}
	}
	if symbols := os.Getenv("MARKET_SYMBOLS"); symbols != "" {
		cfg.Market.Symbols = strings.Split(symbols, ",")
	}
	if interval := os.Getenv("QUOTE_INTERVAL_MS"); interval != "" {
		if ms, err := strconv.Atoi(interval); err == nil && ms > 0 {
			cfg.Market.QuoteInterval = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg
}
