package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"marpelink-escrow-server/internal/config"
	"marpelink-escrow-server/internal/escrow"
	"marpelink-escrow-server/internal/events"
	"marpelink-escrow-server/internal/jobs"
	"marpelink-escrow-server/internal/journal"
	"marpelink-escrow-server/internal/ledger"
	"marpelink-escrow-server/internal/middleware"
	"marpelink-escrow-server/internal/models"
	"marpelink-escrow-server/internal/routes"
	"marpelink-escrow-server/internal/token"
	"marpelink-escrow-server/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "marpelink-escrow-server",
		Short: "MarpeLink consultation escrow API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(auditCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the escrow API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check once that custody holds exactly the escrowed funds",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := jobs.NewAuditor(a.contract, a.logger).Audit(cmd.Context())
			if err != nil {
				return err
			}
			if !report.Balanced {
				return fmt.Errorf("custody balance %s does not match escrowed total %s",
					utils.FormatAmount(report.CustodyBalance, a.token.Decimals),
					utils.FormatAmount(report.EscrowedTotal, a.token.Decimals))
			}
			return nil
		},
	}
}

type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	db        *gorm.DB
	journal   *journal.Journal
	publisher *events.KafkaPublisher
	ledger    *ledger.Ledger
	token     *token.Token
	contract  *escrow.Contract
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// bootstrap loads configuration and opens every component in dependency order.
func bootstrap() (*app, error) {
	// A missing .env is fine; the environment may be set directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	a := &app{cfg: cfg, logger: newLogger(cfg)}

	a.db, err = models.InitDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Debug:  cfg.LogLevel == "debug",
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	a.journal, err = journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("error opening journal: %w", err)
	}

	var opts []ledger.Option
	if len(cfg.Kafka.Brokers) > 0 {
		a.publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, a.logger)
		opts = append(opts, ledger.WithPublisher(a.publisher))
	}
	a.ledger, err = ledger.New(a.db, a.journal, a.logger, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	faucet, err := utils.ParseAmount(cfg.Token.FaucetAmount, cfg.Token.Decimals)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid FAUCET_AMOUNT: %w", err)
	}
	a.token = token.New(a.ledger, cfg.Token.Symbol, cfg.Token.Decimals, faucet)
	a.contract = escrow.New(a.ledger, a.token, cfg.EscrowAddress)
	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close Kafka writer")
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close journal")
		}
	}
}

func runServer() error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	auditor := jobs.NewAuditor(a.contract, a.logger)
	scheduler, err := auditor.StartScheduler(cfg.AuditSchedule)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(a.logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Services{
		DB:       a.db,
		Config:   cfg,
		Ledger:   a.ledger,
		Journal:  a.journal,
		Token:    a.token,
		Contract: a.contract,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.WithFields(logrus.Fields{
			"Port":    cfg.Port,
			"Escrow":  a.contract.Address,
			"Token":   a.token.Symbol,
			"Height":  a.ledger.Head().Height,
			"Brokers": cfg.Kafka.Brokers,
		}).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
