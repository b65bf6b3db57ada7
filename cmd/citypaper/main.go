package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"citypaper/internal/apperrors"
	"citypaper/internal/batch"
	"citypaper/internal/bounds"
	"citypaper/internal/catalog"
	"citypaper/internal/collect"
	"citypaper/internal/config"
	"citypaper/internal/env"
	"citypaper/internal/generator"
	"citypaper/internal/logger"
	"citypaper/internal/metrics"
	"citypaper/internal/publish"
	"citypaper/internal/render"
	"citypaper/internal/storage"
	"citypaper/internal/vcs"
	"citypaper/pkg/graceful"
	"citypaper/pkg/kafkaclient"
	"citypaper/pkg/location"
)

type options struct {
	city           string
	country        string
	displayCity    string
	displayCountry string
	theme          string
	formats        string
	push           bool
	sourceJSON     string
	configPath     string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("citypaper", flag.ContinueOnError)
	fs.StringVar(&o.city, "city", "", "city name")
	fs.StringVar(&o.country, "country", "", "country name")
	fs.StringVar(&o.displayCity, "display-city", "", "city name printed on the poster")
	fs.StringVar(&o.displayCountry, "display-country", "", "country name printed on the poster")
	fs.StringVar(&o.theme, "theme", "", "single theme to render (default: all themes)")
	fs.StringVar(&o.formats, "formats", "all", "comma-separated format names, or all")
	fs.BoolVar(&o.push, "push", false, "push the catalog commit")
	fs.StringVar(&o.sourceJSON, "source-json", "", "batch file with a list of cities")
	fs.StringVar(&o.configPath, "config", "", "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.sourceJSON == "" && (strings.TrimSpace(o.city) == "" || strings.TrimSpace(o.country) == "") {
		return o, apperrors.New(apperrors.ErrCodeInvalidInput, "-city and -country are required unless -source-json is given")
	}
	return o, nil
}

func splitFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	envFile := env.LoadEnv("worker")
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = log.Sync() }()
	if envFile != "" {
		log.Info("loaded environment file", zap.String("path", envFile))
	} else {
		log.Info("no .env file found, assuming environment variables are set directly")
	}

	ctx, cancel := graceful.Context(context.Background(), log)
	defer cancel()

	start := time.Now()
	m := metrics.New()
	gen, cleanup, err := wire(ctx, cfg, m, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		return 1
	}
	defer cleanup()

	var code int
	if opts.sourceJSON != "" {
		code = runBatch(ctx, gen, opts, m, log)
	} else {
		code = runCity(ctx, gen, opts, log)
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("failed to write metrics textfile", zap.Error(err))
		}
	}
	log.Info("finished", zap.Duration("elapsed", time.Since(start)))
	return code
}

func runCity(ctx context.Context, gen *generator.Generator, opts options, log *zap.Logger) int {
	report, err := gen.Run(ctx, generator.Request{
		City:           strings.TrimSpace(opts.city),
		Country:        strings.TrimSpace(opts.country),
		DisplayCity:    opts.displayCity,
		DisplayCountry: opts.displayCountry,
		Theme:          opts.theme,
		Formats:        splitFormats(opts.formats),
		Push:           opts.push,
	})
	if err != nil {
		log.Error("generation failed", zap.String("code", string(apperrors.CodeOf(err))), zap.Error(err))
		return 1
	}
	log.Info("generation complete",
		zap.String("city", report.DisplayCity),
		zap.Int("generated", report.Succeeded),
		zap.Int("jobs", report.Total),
	)
	return 0
}

func runBatch(ctx context.Context, gen *generator.Generator, opts options, m *metrics.Metrics, log *zap.Logger) int {
	entries, err := batch.LoadFile(opts.sourceJSON)
	if err != nil {
		log.Error("invalid batch file", zap.String("path", opts.sourceJSON), zap.Error(err))
		return 1
	}
	driver := batch.NewDriver(gen, batch.Options{
		Theme:   opts.theme,
		Formats: splitFormats(opts.formats),
		Push:    opts.push,
	}, m, log)
	sum, err := driver.Run(ctx, entries)
	if err != nil {
		log.Warn("batch stopped early", zap.Error(err))
		return 130
	}
	log.Info("batch summary",
		zap.String("run_id", sum.RunID),
		zap.Int("total", sum.Total),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
	)
	return 0
}

// wire builds the generator and its collaborators from cfg. The returned
// cleanup closes the optional Postgres pool and Kafka writer.
func wire(ctx context.Context, cfg *config.Config, m *metrics.Metrics, log *zap.Logger) (*generator.Generator, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	uploader, err := storage.New(cfg.Storage, log)
	if err != nil {
		return nil, cleanup, err
	}
	if s3, ok := uploader.(*storage.S3Service); ok {
		if err := s3.EnsureBucket(ctx); err != nil {
			log.Warn("bucket check failed", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
		}
	}

	deps := publish.Deps{
		Uploader: uploader,
		Catalog:  catalog.NewStore(cfg.Catalog.Path, cfg.Catalog.MergeMaps, log),
		Log:      log,
	}

	if cfg.Catalog.PostgresURL != "" {
		mirror, err := catalog.NewMirror(ctx, cfg.Catalog.PostgresURL)
		if err != nil {
			log.Warn("catalog mirror disabled", zap.Error(err))
		} else {
			deps.Mirror = mirror
			closers = append(closers, mirror.Close)
		}
	}

	if cfg.Git.Enabled {
		deps.Committer = vcs.NewGit(cfg.Git.RepoDir, vcs.ExecRunner{}, log)
	}

	if cfg.Kafka.Enabled() {
		producer := kafkaclient.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		deps.Events = producer
		closers = append(closers, func() { _ = producer.Close() })
	}

	geocoder := location.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout)
	gen := generator.New(cfg,
		bounds.NewResolver(geocoder, cfg.Geocoder.PaddingFactor, log),
		render.NewInvoker(cfg.Renderer, render.ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}, log),
		collect.NewCollector(log),
		publish.NewPublisher(cfg.App.OutputDir, deps),
		m,
		log,
	)
	return gen, cleanup, nil
}
