package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/hupe1980/resdb"
	"github.com/hupe1980/resdb/descriptor"
)

func cmdLoad(arg0 string, args []string) error {
	flags := flag.NewFlagSet(arg0+" load", flag.ContinueOnError)
	var (
		configPath = flags.String("config", "", "config file (default "+defaultConfigFile+" if present)")
		typeName   = flags.String("type", "", "object type to search; empty skips the search")
		baseTok    = flags.String("base", "*", "base id filter, a number or *")
		userTok    = flags.String("user", "*", "user id filter, a number or *")
		varsPath   = flags.String("vars", "", "variable path levels separated by |, e.g. Stress|Axial")
		cacheSize  = flags.String("cache", "", "block cache capacity, e.g. 256MB; overrides the config file")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	files := flags.Args()
	if len(files) == 0 {
		return errors.New("load: no result files given")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *cacheSize != "" {
		cfg.CacheCapacity = *cacheSize
	}

	ctx := context.Background()
	opts, err := cfg.extractorOptions(ctx)
	if err != nil {
		return err
	}
	ex, err := resdb.New(opts...)
	if err != nil {
		return err
	}
	defer ex.Close()

	loaded := 0
	for _, res := range ex.AddFiles(ctx, files...) {
		if res.Err != nil {
			fmt.Printf("%s %s: %v\n", color.RedString("FAIL"), res.Ref, res.Err)
			continue
		}
		loaded++
		fmt.Printf("%s   %s (%d objects)\n", color.GreenString("ok"), res.Ref, res.Objects)
	}
	if loaded == 0 {
		return errors.New("load: no files loaded")
	}
	if *typeName == "" {
		return nil
	}

	baseID, err := descriptor.ParseID(*baseTok)
	if err != nil {
		return fmt.Errorf("load: bad -base: %w", err)
	}
	userID, err := descriptor.ParseID(*userTok)
	if err != nil {
		return fmt.Errorf("load: bad -user: %w", err)
	}
	q := resdb.SearchQuery{ObjectType: *typeName, BaseID: baseID, UserID: userID}
	if *varsPath != "" {
		q.Levels = strings.Split(*varsPath, "|")
	}

	matches := ex.Search(q)
	fmt.Printf("%d match(es)\n", len(matches))
	for _, m := range matches {
		if m.Payload.IsZero() {
			fmt.Printf("  %s: no payload\n", m.Descriptor)
			continue
		}
		fmt.Printf("  %s: %s @%d+%d\n", m.Descriptor, m.Payload.Path, m.Payload.Offset, m.Payload.Length)
	}
	return nil
}
