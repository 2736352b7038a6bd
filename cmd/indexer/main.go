package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dtrifiro/vllm-wheels-bucket-indexer/bucket"
	"github.com/dtrifiro/vllm-wheels-bucket-indexer/config"
	"github.com/dtrifiro/vllm-wheels-bucket-indexer/digest"
	"github.com/dtrifiro/vllm-wheels-bucket-indexer/index"
)

var (
	configFile = flag.String("config", "", "Path to indexer configuration YAML file")
	bucketName = flag.String("bucket", "vllm-wheels", "S3 bucket holding the wheels")
	moduleName = flag.String("module", "vllm", "Package name the index serves")
	region     = flag.String("region", "us-west-2", "AWS region of the bucket")
	endpoint   = flag.String("endpoint", "", "Custom S3 endpoint (MinIO, LocalStack)")
	baseURL    = flag.String("base-url", "", "Public base URL for dry-run links (default derived from bucket and region)")
	outputDir  = flag.String("output-dir", "index_test", "Directory receiving dry-run output")
	digests    = flag.Bool("digests", true, "Embed per-wheel SHA-256 fragments in index links")
	dryRun     = flag.Bool("dry-run", true, "Write indexes locally instead of to the bucket")
	anonymous  = flag.Bool("anonymous", false, "Use unsigned S3 requests (public buckets)")
	accessKey  = flag.String("access-key", "", "Static S3 access key (default: SDK credential chain)")
	secretKey  = flag.String("secret-key", "", "Static S3 secret key")
	verify     = flag.Bool("verify", false, "Verify every wheel against its stored digest instead of publishing")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}

	store := bucket.NewS3Store(client, cfg.Bucket)
	var publish bucket.Store = store
	if cfg.DryRun {
		logger.Warn("dry run: writing indexes locally", "dir", cfg.OutputDir)
		publish = bucket.NewDirStore(cfg.OutputDir)
	}

	var manager *digest.Manager
	if cfg.Digests {
		manager = digest.NewManager(store, cfg.DryRun, logger)
	}

	// Links published into the bucket stay relative so they resolve
	// against wherever the index is served from. Dry-run pages live
	// outside the bucket, so their links point back at it absolutely.
	base := ""
	if cfg.DryRun {
		base = cfg.PublicURL()
		logger.Warn("dry run: rewriting links as absolute URLs", "base", base)
	}

	ix := index.New(index.Options{
		Store:   store,
		Publish: publish,
		Bucket:  cfg.Bucket,
		Module:  cfg.Module,
		BaseURL: base,
		Digests: manager,
		Logger:  logger,
	})

	if *verify {
		failures, err := ix.VerifyDigests(ctx)
		if err != nil {
			return err
		}
		if n := len(failures); n > 0 {
			return fmt.Errorf("digest verification failed for %d wheels", n)
		}
		logger.Info("all digests verified")
		return nil
	}

	if _, err := ix.Run(ctx); err != nil {
		return err
	}

	if cfg.DryRun {
		printServeHint(cfg.OutputDir)
	}
	return nil
}

// loadConfig builds the effective configuration: defaults, then the
// config file, then environment variables, then explicit flags.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.LoadFromFile(*configFile)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	cfg.ApplyEnv()
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlags overlays flags the user actually set onto cfg, so flag
// defaults never mask config file or environment values.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bucket":
			cfg.Bucket = *bucketName
		case "module":
			cfg.Module = *moduleName
		case "region":
			cfg.Region = *region
		case "endpoint":
			cfg.Endpoint = *endpoint
		case "base-url":
			cfg.BaseURL = *baseURL
		case "output-dir":
			cfg.OutputDir = *outputDir
		case "digests":
			cfg.Digests = *digests
		case "dry-run":
			cfg.DryRun = *dryRun
		case "anonymous":
			cfg.Anonymous = *anonymous
		case "access-key":
			cfg.AccessKey = *accessKey
		case "secret-key":
			cfg.SecretKey = *secretKey
		}
	})
}

// newS3Client builds the S3 client from cfg. Anonymous mode skips
// request signing entirely; static credentials, when given, bypass the
// SDK's default chain. A custom endpoint switches to path-style
// addressing, which MinIO and LocalStack expect.
func newS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if !cfg.Anonymous && cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Anonymous {
		awsCfg.Credentials = aws.AnonymousCredentials{}
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// printServeHint explains how to use a locally generated index with pip.
func printServeHint(dir string) {
	fmt.Printf("\nTo use the index, first serve it using `python -m http.server --directory %s`, "+
		"and then use `--extra-index-url http://localhost:8000/`.\n\n"+
		"Use \"--extra-index-url http://localhost:8000/<git ref>\" to install a specific git ref.\n"+
		"Installation of dev packages requires the `--pre` pip flag.\n", dir)
}
