package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"virtual-patient/internal/cases"
	"virtual-patient/internal/config"
	"virtual-patient/internal/console"
	"virtual-patient/internal/core"
	"virtual-patient/internal/db"
	httpserver "virtual-patient/internal/http"
	"virtual-patient/internal/llm"
	"virtual-patient/internal/logging"
	"virtual-patient/pkg"
)

// app holds what both subcommands share once configuration is loaded.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	client llm.Client
	corpus []pkg.CaseRecord
	repo   *db.Repository
	conn   *sql.DB
}

func main() {
	var configFile string
	rootCmd := &cobra.Command{
		Use:           "virtual-patient",
		Short:         "Practise history taking and diagnosis against a simulated patient",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "path to a config file (default ./config.yaml)")
	flags.String("cases", "", "case corpus file")
	flags.String("format", "", "case file format: auto, heading or delimited")
	flags.String("log-level", "", "log level")

	rootCmd.AddCommand(chatCmd(&configFile))
	rootCmd.AddCommand(serveCmd(&configFile))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func chatCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Run a training session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, *configFile)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := a.newPatient()
			p.SetCases(a.corpus)
			loop := &console.Loop{
				Patient:   p,
				SessionID: uuid.NewString(),
				Log:       logging.Component(a.log, "console"),
			}
			if a.repo != nil {
				loop.Recorder = a.repo
			}
			return loop.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}

func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, *configFile)
			if err != nil {
				return err
			}
			defer a.close()

			var recorder httpserver.Recorder
			if a.repo != nil {
				recorder = a.repo
			}
			handler, err := httpserver.NewServer(a.corpus, a.newPatient, recorder,
				a.cfg.Server.MaxSessions, logging.Component(a.log, "http"))
			if err != nil {
				return fmt.Errorf("failed to construct server: %w", err)
			}
			return runServer(cmd.Context(), a.cfg.Server.Addr, handler, a.log)
		},
	}
}

// setup loads configuration, the case corpus, the language model client
// and the optional attempt store.
func setup(cmd *cobra.Command, configFile string) (*app, error) {
	v := config.New(configFile)
	bindFlags(v, cmd.Root())
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		return nil, err
	}

	corpus, err := cases.Load(cfg.Cases.File, cfg.CaseFormat())
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"path": cfg.Cases.File, "cases": len(corpus)}).Info("cases loaded")

	if cfg.OpenAI.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set; patient replies will fail")
	}
	a := &app{
		cfg:    cfg,
		log:    logger,
		corpus: corpus,
		client: llm.NewOpenAIClient(llm.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Timeout: cfg.OpenAI.Timeout,
		}),
	}

	if driver := strings.ToLower(cfg.Database.Driver); driver != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		conn, err := db.Open(ctx, driver, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		a.conn = conn
		a.repo = db.NewRepository(conn, driver)
		logger.WithField("driver", driver).Info("attempt store ready")
	}
	return a, nil
}

// bindFlags lets explicitly set command line flags override the config.
func bindFlags(v *viper.Viper, root *cobra.Command) {
	flags := root.PersistentFlags()
	for key, name := range map[string]string{
		"cases.file":    "cases",
		"cases.format":  "format",
		"logging.level": "log-level",
	} {
		if f := flags.Lookup(name); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
}

func (a *app) newPatient() *core.Patient {
	p := a.cfg.Patient
	return core.New(a.client,
		core.WithModel(a.cfg.OpenAI.Model),
		core.WithMaxTokens(p.MaxTokens),
		core.WithTemperature(p.Temperature),
		core.WithSimilarityThreshold(p.SimilarityThreshold),
		core.WithDetector(core.NewDetector(p.DiagnosisTriggers...)),
		core.WithStrictErrors(p.StrictErrors),
		core.WithLogger(logging.Component(a.log, "patient")),
	)
}

func (a *app) close() {
	if a.conn != nil {
		a.conn.Close()
	}
}

// runServer serves until the process is interrupted, then drains
// in-flight requests.
func runServer(ctx context.Context, addr string, handler http.Handler, log *logrus.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
