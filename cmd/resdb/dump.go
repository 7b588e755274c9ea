package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/hupe1980/resdb"
)

func cmdDump(arg0 string, args []string) error {
	flags := flag.NewFlagSet(arg0+" dump", flag.ContinueOnError)
	configPath := flags.String("config", "", "config file (default "+defaultConfigFile+" if present)")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	files := flags.Args()
	if len(files) == 0 {
		return errors.New("dump: no result files given")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
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
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", color.RedString("FAIL"), res.Ref, res.Err)
			continue
		}
		loaded++
	}
	if loaded == 0 {
		return errors.New("dump: no files loaded")
	}

	ex.PrintHierarchy(os.Stdout)
	return nil
}
