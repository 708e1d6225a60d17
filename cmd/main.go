package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Vovarama1992/assistant-offer-bridge/internal/ai"
	"github.com/Vovarama1992/assistant-offer-bridge/internal/config"
	"github.com/Vovarama1992/assistant-offer-bridge/internal/offer"
	"github.com/Vovarama1992/assistant-offer-bridge/internal/paramstore"
)

func main() {
	_ = godotenv.Load()

	var port, logLevel string
	rootCmd := &cobra.Command{
		Use:           "offer-bridge",
		Short:         "Synchronous HTTP front for assistant thread/run exchanges",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(os.LookupEnv, os.Environ())
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return run(cmd.Context(), cfg)
		},
	}
	rootCmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "zerolog level (overrides LOG_LEVEL)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("offer-bridge stopped")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}
	apiKey, err := resolveAPIKey(ctx, cfg)
	if err != nil {
		return err
	}

	// --- Ledger (optional) ---
	var repo offer.Repo
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "db open")
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return errors.Wrap(err, "db ping")
		}
		if err := offer.EnsureSchema(pingCtx, db); err != nil {
			return err
		}
		repo = offer.NewRepo(db)
	} else {
		log.Info().Msg("DATABASE_URL not set, exchange ledger disabled")
	}

	// --- Offer module wiring ---
	aiClient, err := ai.NewOpenAIClient(apiKey,
		ai.WithBaseURL(cfg.BaseURL),
		ai.WithAssistantVersion(cfg.AssistantVersion),
	)
	if err != nil {
		return err
	}
	validator := offer.NewValidator(cfg.Bots, cfg.DefaultBotType)
	offerService := offer.NewService(validator, aiClient, repo, offer.Options{
		Instructions:    cfg.Instructions,
		PollInterval:    cfg.PollInterval,
		MaxPollAttempts: cfg.PollMaxAttempts,
		MaxWait:         cfg.PollMaxWait,
		CallTimeout:     cfg.CallTimeout,
	})
	offerHandler := offer.NewHandler(offerService)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Exchange-Id"},
	}))

	offer.RegisterRoutes(r, offerHandler)

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().
		Strs("bot_types", cfg.Bots.Types()).
		Str("default_bot_type", cfg.DefaultBotType).
		Dur("poll_interval", cfg.PollInterval).
		Msg("assistant identities loaded")

	return serve(ctx, srv)
}

func serve(ctx context.Context, srv *http.Server) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

func resolveAPIKey(ctx context.Context, cfg config.Config) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", errors.Wrap(err, "load AWS config")
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return "", err
	}
	key, err := paramstore.APIKey(ctx, ps, cfg.APIKeyParam)
	if err != nil {
		return "", errors.Wrap(err, "load OPENAI_API_KEY_PARAM")
	}
	return key, nil
}

func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
