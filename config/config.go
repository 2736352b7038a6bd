// Package config carries the indexer's configuration: which bucket to
// index, what package the index serves, and whether the run is live or
// a dry run. Values layer in order of defaults, config file,
// environment, then command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by ApplyEnv.
const (
	EnvDryRun  = "INDEXER_DRY_RUN"
	EnvBucket  = "INDEXER_BUCKET"
	EnvModule  = "INDEXER_MODULE"
	EnvDigests = "INDEXER_DIGESTS"
)

// Config is the full indexer configuration.
type Config struct {
	// Bucket is the S3 bucket holding the wheels.
	Bucket string `json:"bucket" yaml:"bucket"`
	// Module is the package name the index serves.
	Module string `json:"module" yaml:"module"`
	// Region is the AWS region the bucket lives in.
	Region string `json:"region" yaml:"region"`
	// Endpoint overrides the S3 endpoint, for MinIO or LocalStack.
	// Requests switch to path-style addressing when it is set.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// BaseURL overrides the public URL that dry-run links are rewritten
	// against. Empty derives it from Bucket and Region.
	BaseURL string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	// Digests embeds per-wheel SHA-256 fragments in index links.
	Digests bool `json:"digests" yaml:"digests"`
	// DryRun writes index pages under OutputDir instead of the bucket
	// and skips all other bucket writes.
	DryRun bool `json:"dryRun" yaml:"dryRun"`
	// OutputDir receives dry-run output.
	OutputDir string `json:"outputDir" yaml:"outputDir"`
	// Anonymous uses unsigned requests, enough for public buckets.
	Anonymous bool `json:"anonymous,omitempty" yaml:"anonymous,omitempty"`
	// AccessKey and SecretKey are static credentials, mainly for custom
	// endpoints. Empty defers to the SDK's default credential chain.
	AccessKey string `json:"accessKey,omitempty" yaml:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty" yaml:"secretKey,omitempty"`
}

// Default returns the stock configuration: the public vLLM wheel bucket
// with digests on. Dry run is on by default; going live always takes an
// explicit opt-out.
func Default() Config {
	return Config{
		Bucket:    "vllm-wheels",
		Module:    "vllm",
		Region:    "us-west-2",
		Digests:   true,
		DryRun:    true,
		OutputDir: "index_test",
	}
}

// LoadFromFile reads a YAML configuration file layered over the
// defaults, so a file only needs the keys it changes.
func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overlays INDEXER_* environment variables onto c. The dry-run
// variable only goes live when set to exactly "false", case-insensitive;
// any other value keeps the dry run.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvDryRun); ok {
		c.DryRun = !strings.EqualFold(v, "false")
	}
	if v, ok := os.LookupEnv(EnvDigests); ok {
		c.Digests = !strings.EqualFold(v, "false")
	}
	if v := os.Getenv(EnvBucket); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv(EnvModule); v != "" {
		c.Module = v
	}
}

// Validate reports whether c is complete enough to run.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("'bucket' is required")
	}
	if c.Module == "" {
		return errors.New("'module' is required")
	}
	if c.Region == "" && c.Endpoint == "" {
		return errors.New("'region' is required unless an endpoint is set")
	}
	if c.DryRun && c.OutputDir == "" {
		return errors.New("'outputDir' is required for dry runs")
	}
	return nil
}

// PublicURL returns the externally resolvable base URL for objects in
// the bucket: BaseURL when set, the custom endpoint in path style when
// one is configured, otherwise the standard virtual-hosted form.
func (c *Config) PublicURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.Endpoint != "" {
		return strings.TrimRight(c.Endpoint, "/") + "/" + c.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
}
