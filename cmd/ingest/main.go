package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"google.golang.org/genai"

	"github.com/dvloznov/expenses-ingest/internal/assets"
	"github.com/dvloznov/expenses-ingest/internal/config"
	"github.com/dvloznov/expenses-ingest/internal/extract"
	"github.com/dvloznov/expenses-ingest/internal/logger"
	"github.com/dvloznov/expenses-ingest/internal/normalize"
	"github.com/dvloznov/expenses-ingest/internal/report"
	"github.com/dvloznov/expenses-ingest/internal/schema"
	"github.com/dvloznov/expenses-ingest/internal/store"
)

// One-shot ingestion and reporting from the command line:
//
//	ingest -text "latte at blue bottle 6.93"
//	ingest -file receipt.jpg
//	ingest -report 30
func main() {
	var (
		text       = flag.String("text", "", "free-form expense text to ingest")
		file       = flag.String("file", "", "path to a receipt image to ingest")
		reportDays = flag.Int("report", 0, "print a category report over the trailing N days")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	if *text == "" && *file == "" && *reportDays == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest -text <message> | -file <path> | -report <days>")
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}
	bqClient, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}

	txlog := store.NewBigQueryLog(bqClient, cfg.Dataset, cfg.Table)
	defer txlog.Close()

	if *reportDays > 0 {
		records, err := txlog.ReadAll(ctx, cfg.DefaultUser)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read transaction log")
		}
		buckets := report.Summarize(records, *reportDays, time.Now().UTC())
		printJSON(map[string]interface{}{"days": *reportDays, "by_category": buckets})
		return
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create genai client")
	}

	extractor, err := extract.NewGemini(genaiClient, cfg.Models, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extractor")
	}

	normalizer := normalize.New(cfg.DefaultUser, cfg.DefaultCurrency)

	var (
		parsed schema.ExtractedFields
		source schema.Source
		rawURI string
	)

	if *text != "" {
		parsed = extractor.ExtractText(ctx, *text)
		source = schema.SourceText
	} else {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("Failed to read receipt file")
		}

		contentType := mime.TypeByExtension(filepath.Ext(*file))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storageClient.Close()

		assetStore := assets.NewGCSAssetStore(storageClient, cfg.Bucket)
		rawURI, err = assetStore.PutAsset(ctx, data, contentType, filepath.Base(*file))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to upload receipt")
		}

		parsed = extractor.ExtractReceipt(ctx, rawURI, contentType)
		source = schema.SourceReceipt
	}

	rec := normalizer.Normalize(parsed, source, rawURI)
	saved, err := txlog.Append(ctx, rec)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to save transaction")
	}

	printJSON(map[string]interface{}{"parsed": parsed, "record": saved})
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
