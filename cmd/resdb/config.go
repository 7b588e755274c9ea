package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/resdb"
	"github.com/hupe1980/resdb/blobstore"
	minioblob "github.com/hupe1980/resdb/blobstore/minio"
	s3blob "github.com/hupe1980/resdb/blobstore/s3"
	"github.com/hupe1980/resdb/registry"
)

// defaultConfigFile is picked up from the working directory when -config
// is not given.
const defaultConfigFile = "resdb.yaml"

type storeConfig struct {
	// Endpoint selects a MinIO or S3-compatible server. When empty and
	// Bucket is set, the AWS default credential chain is used instead.
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
	// Dir selects a local directory store, mostly for offline use.
	Dir string `yaml:"dir"`
}

type registryConfig struct {
	Table string `yaml:"table"`
}

type cliConfig struct {
	CacheCapacity string          `yaml:"cache_capacity"`
	StageDir      string          `yaml:"stage_dir"`
	Store         *storeConfig    `yaml:"store"`
	Registry      *registryConfig `yaml:"registry"`
}

// loadConfig reads path, or resdb.yaml from the working directory when
// path is empty. A missing default file is not an error.
func loadConfig(path string) (*cliConfig, error) {
	cfg := &cliConfig{}
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return cfg, nil
		}
		path = defaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// extractorOptions turns the config into extractor options, opening blob
// store and registry clients as needed.
func (c *cliConfig) extractorOptions(ctx context.Context) ([]resdb.Option, error) {
	var opts []resdb.Option
	if c.CacheCapacity != "" {
		n, err := humanize.ParseBytes(c.CacheCapacity)
		if err != nil {
			return nil, fmt.Errorf("cache_capacity: %w", err)
		}
		opts = append(opts, resdb.WithCacheCapacity(int64(n)))
	}
	if c.StageDir != "" {
		opts = append(opts, resdb.WithStageDir(c.StageDir))
	}
	if c.Store != nil {
		store, err := c.Store.open(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resdb.WithStore(store))
	}
	if c.Registry != nil && c.Registry.Table != "" {
		reg, err := c.Registry.open(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resdb.WithRegistry(reg))
	}
	return opts, nil
}

func (s *storeConfig) open(ctx context.Context) (blobstore.Store, error) {
	switch {
	case s.Dir != "":
		return blobstore.NewLocalStore(s.Dir), nil
	case s.Endpoint != "":
		client, err := minio.New(s.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(s.AccessKey, s.SecretKey, ""),
			Secure: s.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		return minioblob.NewStore(client, s.Bucket, s.Prefix), nil
	case s.Bucket != "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		return s3blob.NewStore(s3.NewFromConfig(awsCfg), s.Bucket, s.Prefix), nil
	default:
		return nil, errors.New("store: dir, endpoint, or bucket required")
	}
}

func (r *registryConfig) open(ctx context.Context) (registry.Registry, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return registry.NewDynamoDBRegistry(dynamodb.NewFromConfig(awsCfg), r.Table), nil
}
