package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/hupe1980/resdb/frs"
)

func cmdInfo(arg0 string, args []string) error {
	flags := flag.NewFlagSet(arg0+" info", flag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	files := flags.Args()
	if len(files) == 0 {
		return errors.New("info: no result files given")
	}

	readable := 0
	for _, path := range files {
		f, err := frs.Open(path)
		if err != nil {
			fmt.Printf("%s %s: %v\n", color.RedString("FAIL"), path, err)
			continue
		}
		readable++
		info := f.Info()
		fmt.Println(color.CyanString(info.Path))
		fmt.Printf("  tag         %s\n", info.Tag)
		fmt.Printf("  byte order  %s\n", info.ByteOrder)
		if info.Module != "" {
			fmt.Printf("  module      %s\n", info.Module)
		}
		if info.Created != "" {
			fmt.Printf("  created     %s\n", info.Created)
		}
		fmt.Printf("  objects     %d\n", info.Objects)
		fmt.Printf("  variables   %d\n", info.Variables)
		fmt.Printf("  payload     %s\n", humanize.Bytes(uint64(info.PayloadBytes)))
		fmt.Printf("  file size   %s\n", humanize.Bytes(uint64(info.Size)))
	}
	if readable == 0 {
		return errors.New("info: no files readable")
	}
	return nil
}
