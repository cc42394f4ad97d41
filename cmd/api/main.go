package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"google.golang.org/genai"

	"github.com/dvloznov/expenses-ingest/internal/api/handlers"
	"github.com/dvloznov/expenses-ingest/internal/api/middleware"
	"github.com/dvloznov/expenses-ingest/internal/assets"
	"github.com/dvloznov/expenses-ingest/internal/config"
	"github.com/dvloznov/expenses-ingest/internal/extract"
	"github.com/dvloznov/expenses-ingest/internal/jobs"
	"github.com/dvloznov/expenses-ingest/internal/jobs/inmemory"
	"github.com/dvloznov/expenses-ingest/internal/logger"
	"github.com/dvloznov/expenses-ingest/internal/normalize"
	"github.com/dvloznov/expenses-ingest/internal/schema"
	"github.com/dvloznov/expenses-ingest/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	// All external clients are created once here and injected; nothing
	// initializes lazily on first request.
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create genai client")
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}
	bqClient, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storageClient.Close()

	txlog := store.NewBigQueryLog(bqClient, cfg.Dataset, cfg.Table)
	defer txlog.Close()

	assetStore := assets.NewGCSAssetStore(storageClient, cfg.Bucket)

	extractor, err := extract.NewGemini(genaiClient, cfg.Models, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extractor")
	}

	normalizer := normalize.New(cfg.DefaultUser, cfg.DefaultCurrency)

	// Async receipt ingestion: uploaded assets are queued and processed by
	// background workers through the same extract -> normalize -> append
	// path as the synchronous endpoint.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 2, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		ingestJob, ok := job.(*jobs.IngestReceiptJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", ingestJob.JobID).
			Str("asset_uri", ingestJob.AssetURI).
			Msg("Processing ingest job")

		parsed := extractor.ExtractReceipt(ctx, ingestJob.AssetURI, ingestJob.ContentType)
		rec := normalizer.Normalize(parsed, schema.SourceReceipt, ingestJob.AssetURI)

		saved, err := txlog.Append(ctx, rec)
		if err != nil {
			log.Error().Err(err).Str("job_id", ingestJob.JobID).Msg("Ingest job failed to persist")
			return err
		}

		ingestJob.RecordID = saved.ID
		log.Info().
			Str("job_id", ingestJob.JobID).
			Str("record_id", saved.ID).
			Msg("Ingest job completed")
		return nil
	}

	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	expensesHandler := handlers.NewExpensesHandler(extractor, normalizer, txlog, assetStore, jobQueue, log)
	reportHandler := handlers.NewReportHandler(txlog, cfg.DefaultUser, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/expenses/text", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			expensesHandler.IngestText(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/expenses/receipt", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			expensesHandler.IngestReceipt(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/receipts/async", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			expensesHandler.EnqueueReceipt(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/report", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportHandler.Report(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"project": cfg.ProjectID,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"service": "expenses-ingest"})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
