package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apihttp "bigfive-llm/internal/http"
	"bigfive-llm/internal/report"
	"bigfive-llm/internal/repository"
	"bigfive-llm/internal/service"
)

const runStatusTTL = 24 * time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (reports and async runs)",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		reports   apihttp.ReportReader
		publisher *report.Publisher
	)
	if cfg.DatabaseURL != "" {
		pool, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pgRepo := repository.NewPgReportRepository(pool)
		reports = pgRepo
		publisher = report.NewPublisher(report.NewWriter(cfg.ResultsDir), pgRepo, logger)
	} else {
		// Sin base de datos los archivos del directorio de resultados son el repositorio.
		fileRepo := repository.NewFileReportRepository(cfg.ResultsDir)
		reports = fileRepo
		publisher = report.NewPublisher(nil, fileRepo, logger)
	}

	var runStore service.RunStore
	if redisClient != nil {
		runStore = service.NewRedisRunStore(redisClient, runStatusTTL)
	} else {
		runStore = service.NewMemoryRunStore(runStatusTTL)
	}

	settings := providerSettings(cfg)
	evaluator, err := newEvaluationService(cfg, newRegistry(cfg, redisClient, logger), logger)
	if err != nil {
		return err
	}
	runs := service.NewRunManager(ctx, evaluator, runStore, publisher, logger)

	var tokens *service.TokenService
	if cfg.JWTSecret != "" {
		tokens = service.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	} else {
		logger.Warn("jwt secret not configured; POST /runs is disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := apihttp.NewRouter(
		logger,
		tokens,
		apihttp.NewReportHandler(reports, logger),
		apihttp.NewRunHandler(runs, defaultModels(cfg, settings, logger), logger),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	runs.Wait()
	return nil
}

var (
	tokenSubject string
	tokenScope   string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator JWT (runs:write allows POST /runs)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.JWTSecret == "" {
			return errors.New("JWT_SECRET is not set")
		}
		if tokenSubject == "" {
			return errors.New("--subject is required")
		}
		token, expires, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTTTL).IssueScoped(tokenSubject, tokenScope, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "operator name stored in the token")
	tokenCmd.Flags().StringVar(&tokenScope, "scope", service.ScopeRuns, "space separated scopes")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default JWT_TTL)")
}
