package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"billdesk/internal/archive"
	"billdesk/internal/cache"
	"billdesk/internal/config"
	"billdesk/internal/database"
	"billdesk/internal/invoice"
	"billdesk/internal/render"
	"billdesk/internal/repository"
)

// app wires the ledger and its collaborators for one command invocation.
type app struct {
	cfg       *config.Config
	store     *repository.SQLStore
	artifacts *invoice.Artifacts
	ledger    *invoice.Ledger
	redis     *redis.Client
	log       zerolog.Logger
}

// openApp connects to the database, migrates it and builds the ledger.
func openApp(ctx context.Context, c *config.Config, log zerolog.Logger) (*app, error) {
	if c == nil {
		c = config.Default()
	}

	db, err := database.Open(ctx, c.DBDriver, c.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Str("driver", c.DBDriver).Msg("Failed to open database")
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		log.Error().Err(err).Msg("Failed to migrate database")
		return nil, err
	}

	policy, err := invoice.ParseRemainderPolicy(c.InstallmentRemainder)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{
		cfg:       c,
		store:     repository.NewSQLStore(db),
		artifacts: invoice.NewArtifacts(c.InvoicesDir, nil),
		log:       log,
	}

	if c.MinioEndpoint != "" {
		arch, err := archive.NewMinioArchive(ctx, archive.Options{
			Endpoint:  c.MinioEndpoint,
			AccessKey: c.MinioAccessKey,
			SecretKey: c.MinioSecretKey,
			Bucket:    c.MinioBucket,
			Secure:    c.MinioSecure,
		})
		if err != nil {
			// The archive is a mirror; local artifacts still work without it.
			log.Warn().Err(err).Str("endpoint", c.MinioEndpoint).Msg("MinIO archive unavailable, continuing without it")
		} else {
			a.artifacts.Archive = arch
		}
	}

	a.ledger = invoice.NewLedger(a.store,
		invoice.WithScheduler(invoice.NewScheduler(policy)),
		invoice.WithArtifacts(a.artifacts),
	)
	return a, nil
}

// pipeline builds the PDF pipeline, sharing a Redis render lock when one
// is configured.
func (a *app) pipeline(ctx context.Context) (*invoice.Pipeline, error) {
	opts := []invoice.PipelineOption{
		invoice.WithRenderTimeout(a.cfg.RenderTimeout),
	}

	if a.cfg.RedisAddr != "" {
		client, err := cache.ConnectRedis(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err != nil {
			a.log.Error().Err(err).Str("addr", a.cfg.RedisAddr).Msg("Failed to connect render lock")
			return nil, err
		}
		a.redis = client
		opts = append(opts, invoice.WithRenderGuard(cache.NewRenderLock(client, a.cfg.RenderLockTTL)))
	}

	return invoice.NewPipeline(
		a.store,
		render.NewChromeRenderer(a.cfg.ChromePath),
		invoice.URLViews{BaseURL: a.cfg.ViewBaseURL},
		a.artifacts,
		opts...,
	), nil
}

func (a *app) Close() {
	if err := cache.DisconnectRedis(a.redis); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close Redis")
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close database")
	}
}

// createCommandContext creates a context with timeout and signal handling
func createCommandContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling command")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleLedgerError provides user-friendly error messages for ledger and
// PDF failures
func handleLedgerError(err error, invoiceNumber string, log zerolog.Logger) error {
	log.Error().Err(err).Str("invoice_number", invoiceNumber).Msg("Operation failed")

	var verr *invoice.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Errorf("invalid %s: %s", verr.Field, verr.Message)
	case errors.Is(err, invoice.ErrNotFound):
		return fmt.Errorf("invoice %s not found", invoiceNumber)
	case errors.Is(err, invoice.ErrRenderTimeout):
		return fmt.Errorf("PDF rendering timed out. Try increasing RENDER_TIMEOUT or check that %s is reachable", cfg.ViewBaseURL)
	case errors.Is(err, invoice.ErrRenderInProgress):
		return fmt.Errorf("a PDF for invoice %s is already being generated. Try again shortly", invoiceNumber)
	case errors.Is(err, invoice.ErrRender):
		return fmt.Errorf("PDF rendering failed. Check that Chrome is installed (CHROME_PATH) and the invoice view is reachable: %w", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("operation was canceled")
	case errors.Is(err, invoice.ErrConcurrencyConflict):
		return fmt.Errorf("invoice number conflict, nothing was stored: %w", err)
	case errors.Is(err, invoice.ErrStorage):
		return fmt.Errorf("database operation failed: %w", err)
	default:
		return fmt.Errorf("operation failed: %w", err)
	}
}

// writeJSON formats and outputs results as JSON
func writeJSON(v interface{}, outputPath string, log zerolog.Logger) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal output to JSON")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(jsonData)).
			Msg("Output written to file")
		return nil
	}

	if _, err := os.Stdout.Write(jsonData); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Println()
	return nil
}
