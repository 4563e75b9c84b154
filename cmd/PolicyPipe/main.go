package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/PolicyPipe/internal/extraction"
	"github.com/BTreeMap/PolicyPipe/internal/flow"
	"github.com/BTreeMap/PolicyPipe/internal/genai"
	"github.com/BTreeMap/PolicyPipe/internal/messaging"
	"github.com/BTreeMap/PolicyPipe/internal/metrics"
	"github.com/BTreeMap/PolicyPipe/internal/store"
	"github.com/BTreeMap/PolicyPipe/internal/util"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	slog.Info("Bootstrapping PolicyPipe with configured modules")
	if err := run(flags); err != nil {
		slog.Error("PolicyPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("PolicyPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	TelegramToken   string
	MindeeAPIKey    string
	PassportModelID string
	VehicleModelID  string
	OpenAIKey       string
	MetricsAddr     string
	PriceUSD        int
}

// Flags holds command line flag values
type Flags struct {
	telegramToken *string
	mindeeKey     *string
	passportModel *string
	vehicleModel  *string
	openaiKey     *string
	metricsAddr   *string
	priceUSD      *int
}

// initializeLogger sets up structured logging; DEBUG=true raises the level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		MindeeAPIKey:    os.Getenv("MINDEE_API_KEY"),
		PassportModelID: os.Getenv("PASSPORT_MODEL_ID"),
		VehicleModelID:  os.Getenv("VEHICLE_MODEL_ID"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		MetricsAddr:     os.Getenv("METRICS_ADDR"),
		PriceUSD:        parsePriceUSD(os.Getenv("INSURANCE_PRICE_USD")),
	}

	slog.Debug("environment variables loaded",
		"TELEGRAM_TOKEN_SET", config.TelegramToken != "",
		"MINDEE_API_KEY_SET", config.MindeeAPIKey != "",
		"PASSPORT_MODEL_ID", config.PassportModelID,
		"VEHICLE_MODEL_ID", config.VehicleModelID,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"METRICS_ADDR", config.MetricsAddr,
		"INSURANCE_PRICE_USD", config.PriceUSD)

	return config
}

// parsePriceUSD parses the display price, falling back to the default on
// anything unparsable or non-positive.
func parsePriceUSD(value string) int {
	if value == "" {
		return flow.DefaultPriceUSD
	}
	price, err := strconv.Atoi(value)
	if err != nil || price <= 0 {
		slog.Warn("invalid INSURANCE_PRICE_USD, using default", "value", value, "default", flow.DefaultPriceUSD)
		return flow.DefaultPriceUSD
	}
	return price
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		telegramToken: flag.String("telegram-token", config.TelegramToken, "Telegram bot token (overrides $TELEGRAM_TOKEN)"),
		mindeeKey:     flag.String("mindee-api-key", config.MindeeAPIKey, "Mindee API key (overrides $MINDEE_API_KEY)"),
		passportModel: flag.String("passport-model", config.PassportModelID, "passport inference model ID (overrides $PASSPORT_MODEL_ID)"),
		vehicleModel:  flag.String("vehicle-model", config.VehicleModelID, "vehicle inference model ID (overrides $VEHICLE_MODEL_ID)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		metricsAddr:   flag.String("metrics-addr", config.MetricsAddr, "Prometheus metrics address (overrides $METRICS_ADDR)"),
		priceUSD:      flag.Int("price-usd", config.PriceUSD, "fixed display-only policy price (overrides $INSURANCE_PRICE_USD)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"telegramTokenSet", *flags.telegramToken != "",
		"mindeeKeySet", *flags.mindeeKey != "",
		"passportModel", *flags.passportModel,
		"vehicleModel", *flags.vehicleModel,
		"openaiKeySet", *flags.openaiKey != "",
		"metricsAddr", *flags.metricsAddr,
		"priceUSD", *flags.priceUSD)

	return flags
}

// run wires the modules together and blocks until shutdown.
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := store.NewInMemoryStore()

	extractor, err := extraction.NewClient(
		extraction.WithAPIKey(*flags.mindeeKey),
		extraction.WithPassportModel(*flags.passportModel),
		extraction.WithVehicleModel(*flags.vehicleModel),
	)
	if err != nil {
		return err
	}

	// The completion collaborator is optional: without it every fallback
	// call site degrades to its canned reply.
	var genaiClient genai.ClientInterface
	if client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey)); err != nil {
		slog.Warn("GenAI client unavailable, completion fallbacks degrade to canned replies", "error", err)
	} else {
		genaiClient = client
	}

	svc, err := messaging.NewTelegramService(*flags.telegramToken)
	if err != nil {
		return err
	}

	intake := flow.NewIntakeFlow(
		flow.NewStoreBasedStateManager(sessions),
		sessions,
		extractor,
		genaiClient,
		svc,
		flow.WithPrice(*flags.priceUSD),
	)

	handler := messaging.NewResponseHandler(svc)
	handler.SetEventAction(intake.ProcessEvent)

	metricsServer := startMetricsServer(*flags.metricsAddr)

	if err := svc.Start(ctx); err != nil {
		return err
	}

	handler.Run(ctx)

	slog.Info("Shutting down")
	if err := svc.Stop(); err != nil {
		slog.Error("Failed to stop messaging service", "error", err)
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to stop metrics server", "error", err)
		}
	}
	return nil
}

// startMetricsServer serves the Prometheus registry when an address is
// configured; returns nil otherwise.
func startMetricsServer(addr string) *http.Server {
	if addr == "" {
		slog.Debug("No metrics address configured, metrics endpoint disabled")
		return nil
	}
	metrics.MustRegister()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		slog.Info("Metrics server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return server
}
