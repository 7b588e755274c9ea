package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/hupe1980/resdb/blobstore"
)

func cmdFetch(arg0 string, args []string) error {
	flags := flag.NewFlagSet(arg0+" fetch", flag.ContinueOnError)
	var (
		configPath = flags.String("config", "", "config file (default "+defaultConfigFile+" if present)")
		runID      = flags.String("run", "", "run id to fetch (required)")
		outDir     = flags.String("out", ".", "directory for the downloaded files")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *runID == "" {
		return errors.New("fetch: -run is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Store == nil {
		return errors.New("fetch: no store configured")
	}
	if cfg.Registry == nil || cfg.Registry.Table == "" {
		return errors.New("fetch: no registry configured")
	}

	ctx := context.Background()
	store, err := cfg.Store.open(ctx)
	if err != nil {
		return err
	}
	reg, err := cfg.Registry.open(ctx)
	if err != nil {
		return err
	}

	keys, err := reg.Resolve(ctx, *runID)
	if err != nil {
		return fmt.Errorf("fetch: resolve %s: %w", *runID, err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	for _, key := range keys {
		n, err := fetchBlob(ctx, store, key, filepath.Join(*outDir, path.Base(key)))
		if err != nil {
			return fmt.Errorf("fetch: %s: %w", key, err)
		}
		fmt.Printf("%s   %s (%s)\n", color.GreenString("ok"), key, humanize.Bytes(uint64(n)))
	}
	return nil
}

func fetchBlob(ctx context.Context, store blobstore.Store, key, dst string) (int64, error) {
	blob, err := store.Open(ctx, key)
	if err != nil {
		return 0, err
	}
	defer blob.Close()

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, rc)
	if err != nil {
		f.Close()
		return 0, err
	}
	return n, f.Close()
}

func cmdPut(arg0 string, args []string) error {
	flags := flag.NewFlagSet(arg0+" put", flag.ContinueOnError)
	var (
		configPath = flags.String("config", "", "config file (default "+defaultConfigFile+" if present)")
		runID      = flags.String("run", "", "also register the uploads under this run id")
		keyPrefix  = flags.String("prefix", "", "key prefix inside the store")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	files := flags.Args()
	if len(files) == 0 {
		return errors.New("put: no files given")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Store == nil {
		return errors.New("put: no store configured")
	}

	ctx := context.Background()
	store, err := cfg.Store.open(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		key := path.Join(*keyPrefix, filepath.Base(file))
		if err := store.Put(ctx, key, data); err != nil {
			return fmt.Errorf("put: %s: %w", key, err)
		}
		keys = append(keys, key)
		fmt.Printf("%s   %s (%s)\n", color.GreenString("ok"), key, humanize.Bytes(uint64(len(data))))
	}

	if *runID != "" {
		if cfg.Registry == nil || cfg.Registry.Table == "" {
			return errors.New("put: -run given but no registry configured")
		}
		reg, err := cfg.Registry.open(ctx)
		if err != nil {
			return err
		}
		if err := reg.Register(ctx, *runID, keys); err != nil {
			return fmt.Errorf("put: register %s: %w", *runID, err)
		}
		fmt.Printf("registered run %s (%d files)\n", *runID, len(keys))
	}
	return nil
}
