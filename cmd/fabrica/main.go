// Package main is the entrypoint for the fabrica CLI, a client for the
// Fabrica synthetic data generation API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/fabrica/internal/artifacts"
	"github.com/kiranshivaraju/fabrica/internal/config"
	"github.com/kiranshivaraju/fabrica/internal/fabrica"
	"github.com/kiranshivaraju/fabrica/internal/fake"
	"github.com/kiranshivaraju/fabrica/internal/idgen"
	"github.com/kiranshivaraju/fabrica/internal/importer"
	"github.com/kiranshivaraju/fabrica/internal/ledger"
	"github.com/kiranshivaraju/fabrica/internal/schemastore"
	"github.com/kiranshivaraju/fabrica/pkg/models"
)

const shutdownTimeout = 30 * time.Second

const usage = `Usage: fabrica <command> [flags]

Commands:
  health     check whether the Fabrica API is reachable
  submit     submit a schema for data generation
  status     show the current status of a job
  watch      poll a job until it reaches a terminal state
  download   download the generated archive for a job
  delete     delete a job and its artifacts from the server
  data       preview generated rows for a job
  jobs       list completed jobs
  import     validate a schema file and load it into the schema store
  generate   generate a schema from a natural language story
  mock       run a local mock Fabrica server
`

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(os.Args[1:]); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]

	// mock runs without client configuration
	if cmd == "mock" {
		return runMock(ctx, rest)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client := fabrica.NewClient(cfg.API.BaseURL, cfg.API.APIKey, cfg.API.Timeout)

	switch cmd {
	case "health":
		return runHealth(ctx, client)
	case "submit":
		return runSubmit(ctx, cfg, client, rest)
	case "status":
		return runStatus(ctx, client, rest)
	case "watch":
		return runWatch(ctx, cfg, client, rest)
	case "download":
		return runDownload(ctx, cfg, client, rest)
	case "delete":
		return runDelete(ctx, client, rest)
	case "data":
		return runData(ctx, client, rest)
	case "jobs":
		return runJobs(ctx, client)
	case "import":
		return runImport(ctx, cfg, rest)
	case "generate":
		return runGenerate(ctx, cfg, client, rest)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runHealth(ctx context.Context, client *fabrica.Client) error {
	if client.CheckHealth(ctx) {
		fmt.Println("healthy")
		return nil
	}
	fmt.Println("unreachable")
	return errors.New("fabrica API is not reachable")
}

func runSubmit(ctx context.Context, cfg *config.Config, client *fabrica.Client, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	file := fs.String("file", "", "path to a schema JSON file")
	name := fs.String("name", "", "schema name recorded in the local job history")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("submit: -file is required")
	}

	doc, err := readSchemaFile(*file)
	if err != nil {
		return err
	}

	record, err := client.SubmitJob(ctx, doc)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	fmt.Println(record.JobID)

	return recordSubmission(ctx, cfg, record, *name, len(doc.Tables))
}

func runStatus(ctx context.Context, client *fabrica.Client, args []string) error {
	jobID, err := jobIDArg("status", args)
	if err != nil {
		return err
	}

	record, err := client.GetJobStatus(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}
	printRecord(record)
	return nil
}

func runWatch(ctx context.Context, cfg *config.Config, client *fabrica.Client, args []string) error {
	jobID, err := jobIDArg("watch", args)
	if err != nil {
		return err
	}

	record, err := client.PollUntilComplete(ctx, jobID, fabrica.PollOptions{
		Interval:    cfg.Poll.Interval,
		MaxAttempts: cfg.Poll.MaxAttempts,
		OnProgress: func(progress float64, message string) {
			fmt.Printf("%5.1f%%  %s\n", progress, message)
		},
	})
	updateSubmission(ctx, cfg, jobID, record, err)
	if err != nil {
		return fmt.Errorf("watch job: %w", err)
	}
	printRecord(record)
	return nil
}

func runDownload(ctx context.Context, cfg *config.Config, client *fabrica.Client, args []string) error {
	jobID, err := jobIDArg("download", args)
	if err != nil {
		return err
	}

	body, err := client.DownloadFiles(ctx, jobID)
	if err != nil {
		return fmt.Errorf("download files: %w", err)
	}
	defer body.Close()

	sink, err := buildSink(ctx, cfg)
	if err != nil {
		return err
	}

	location, err := sink.Save(ctx, jobID, "dataset.zip", body)
	if err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	fmt.Println(location)
	return nil
}

func runDelete(ctx context.Context, client *fabrica.Client, args []string) error {
	jobID, err := jobIDArg("delete", args)
	if err != nil {
		return err
	}

	result, err := client.DeleteJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	fmt.Printf("%s %s\n", result.Status, result.JobID)
	return nil
}

func runData(ctx context.Context, client *fabrica.Client, args []string) error {
	fs := flag.NewFlagSet("data", flag.ContinueOnError)
	jobID := fs.String("job", "", "job ID")
	limit := fs.Int("limit", 0, "rows per table (server default when 0)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" {
		return errors.New("data: -job is required")
	}

	data, err := client.GetJobData(ctx, *jobID, *limit)
	if err != nil {
		return fmt.Errorf("get job data: %w", err)
	}

	for name, table := range data.Tables {
		fmt.Printf("%s: %d of %d rows\n", name, table.PreviewRows, table.TotalRows)
		for _, row := range table.Rows {
			fmt.Printf("  %v\n", row)
		}
	}
	return nil
}

func runJobs(ctx context.Context, client *fabrica.Client) error {
	jobs, err := client.CompletedJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Println("no completed jobs")
		return nil
	}
	for _, j := range jobs {
		fmt.Printf("%s\t%s\n", j.JobID, j.Status)
	}
	return nil
}

func runImport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	file := fs.String("file", "", "path to a schema JSON file")
	link := fs.String("link", "", "base64 schema payload from a share link")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var doc *models.SchemaDocument
	var err error
	switch {
	case *file != "":
		doc, err = readSchemaFile(*file)
	case *link != "":
		doc, err = importer.DecodeSharePayload(*link)
		if err != nil {
			err = fmt.Errorf("decode share link: %w", err)
		}
	default:
		return errors.New("import: -file or -link is required")
	}
	if err != nil {
		return err
	}

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	imp := importer.New(store, idgen.UUID{})
	result, err := imp.Import(ctx, doc)
	if err != nil {
		return fmt.Errorf("import schema: %w", err)
	}
	fmt.Printf("imported %d tables, %d columns\n", result.TablesImported, result.ColumnsImported)
	return nil
}

func runGenerate(ctx context.Context, cfg *config.Config, client *fabrica.Client, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	story := fs.String("story", "", "natural language description of the dataset")
	load := fs.Bool("load", false, "load the generated schema into the schema store")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *story == "" {
		return errors.New("generate: -story is required")
	}

	doc, err := client.GenerateSchema(ctx, *story, func(chunk string) {
		fmt.Print(chunk)
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}

	if *load {
		store, closeStore, err := buildStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		imp := importer.New(store, idgen.UUID{})
		result, err := imp.Import(ctx, doc)
		if err != nil {
			return fmt.Errorf("import generated schema: %w", err)
		}
		fmt.Printf("imported %d tables, %d columns\n", result.TablesImported, result.ColumnsImported)
	}
	return nil
}

func runMock(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mock", flag.ContinueOnError)
	addr := fs.String("addr", ":8000", "listen address")
	stream := fs.Bool("stream", true, "stream schema generation responses")
	if err := fs.Parse(args); err != nil {
		return err
	}

	server := fake.NewServer()
	server.StreamGenerate = *stream

	srv := &http.Server{
		Addr:         *addr,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mock server listening", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("mock server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mock server shutdown: %w", err)
	}
	slog.Info("mock server stopped gracefully")
	return nil
}

// --- wiring helpers ---

// buildStore picks the Redis-backed schema store when REDIS_URL is set,
// otherwise an in-memory one.
func buildStore(ctx context.Context, cfg *config.Config) (schemastore.Store, func(), error) {
	if cfg.Redis.URL == "" {
		return schemastore.NewMemoryStore(), func() {}, nil
	}

	store, err := schemastore.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return store, func() { store.Close() }, nil
}

func buildSink(ctx context.Context, cfg *config.Config) (artifacts.Sink, error) {
	if cfg.Artifacts.Backend == "minio" {
		sink, err := artifacts.NewMinioSink(ctx, artifacts.MinioConfig{
			Endpoint:  cfg.Artifacts.Minio.Endpoint,
			AccessKey: cfg.Artifacts.Minio.AccessKey,
			SecretKey: cfg.Artifacts.Minio.SecretKey,
			Bucket:    cfg.Artifacts.Minio.Bucket,
			UseSSL:    cfg.Artifacts.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio sink: %w", err)
		}
		return sink, nil
	}
	return artifacts.NewDirSink(cfg.Artifacts.Dir), nil
}

// buildLedger returns nil when no DATABASE_URL is configured; the job
// history is then simply not kept.
func buildLedger(ctx context.Context, cfg *config.Config) (ledger.Ledger, func(), error) {
	if cfg.Database.URL == "" {
		return nil, func() {}, nil
	}

	if err := ledger.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := ledger.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return ledger.NewPostgresLedger(pool), func() { pool.Close() }, nil
}

func recordSubmission(ctx context.Context, cfg *config.Config, record *models.JobRecord, name string, tableCount int) error {
	l, closeLedger, err := buildLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLedger()
	if l == nil {
		return nil
	}

	return l.Record(ctx, &ledger.Entry{
		ID:          uuid.New(),
		JobID:       record.JobID,
		SchemaName:  name,
		TableCount:  tableCount,
		Status:      record.Status,
		SubmittedAt: time.Now().UTC(),
	})
}

// updateSubmission mirrors the job's terminal state into the local history.
// Failures here are logged, not fatal; the watch result matters more.
func updateSubmission(ctx context.Context, cfg *config.Config, jobID string, record *models.JobRecord, watchErr error) {
	l, closeLedger, err := buildLedger(ctx, cfg)
	if err != nil {
		slog.Warn("job history unavailable", "error", err)
		return
	}
	defer closeLedger()
	if l == nil {
		return
	}

	status := models.JobStatusFailure
	opts := []ledger.UpdateOption{ledger.WithCompletedAt(time.Now().UTC())}
	switch {
	case record != nil:
		status = record.Status
		if record.Error != nil {
			opts = append(opts, ledger.WithErrorMessage(*record.Error))
		}
	case watchErr != nil:
		opts = append(opts, ledger.WithErrorMessage(watchErr.Error()))
	}

	if err := l.UpdateStatus(ctx, jobID, status, opts...); err != nil && !errors.Is(err, ledger.ErrNotFound) {
		slog.Warn("failed to update job history", "job_id", jobID, "error", err)
	}
}

// --- small helpers ---

func jobIDArg(cmd string, args []string) (string, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	jobID := fs.String("job", "", "job ID")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if *jobID == "" {
		return "", fmt.Errorf("%s: -job is required", cmd)
	}
	return *jobID, nil
}

func readSchemaFile(path string) (*models.SchemaDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()

	doc, err := importer.ReadUpload(path, "application/json", f)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return doc, nil
}

func printRecord(record *models.JobRecord) {
	fmt.Printf("job:    %s\n", record.JobID)
	fmt.Printf("status: %s\n", record.Status)
	if record.Progress != nil {
		fmt.Printf("progress: %.1f%%\n", *record.Progress)
	}
	if record.Message != nil {
		fmt.Printf("message: %s\n", *record.Message)
	}
	if record.Error != nil {
		fmt.Printf("error: %s\n", *record.Error)
	}
	for name, url := range record.Files {
		fmt.Printf("file: %s\t%s\n", name, url)
	}
}
