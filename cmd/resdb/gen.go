package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hupe1980/resdb/frs"
)

func cmdGen(arg0 string, args []string) error {
	flags := flag.NewFlagSet(arg0+" gen", flag.ContinueOnError)
	var (
		out     = flags.String("out", "", "output path (required)")
		big     = flags.Bool("big", false, "write big-endian payloads")
		objects = flags.Int("objects", 2, "number of beam objects")
		samples = flags.Int("samples", 10, "values per variable")
	)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *out == "" {
		return errors.New("gen: -out is required")
	}
	if *objects < 1 || *samples < 1 {
		return errors.New("gen: -objects and -samples must be positive")
	}

	var order binary.ByteOrder = binary.LittleEndian
	if *big {
		order = binary.BigEndian
	}

	w := frs.NewWriter(order)
	w.SetModule("resdb-gen")
	w.SetCreated(time.Now().UTC().Format("2006-01-02 15:04:05"))
	for i := 1; i <= *objects; i++ {
		o := w.Object("Beam", i, 100+i)
		o.Float64("Length", "LENGTH", float64(i)*2.5)
		g := o.Group("Stress")
		g.Float64("Axial", "SCALAR", ramp(float64(i), *samples)...)
		g.Float64("Bending", "SCALAR", ramp(-float64(i), *samples)...)
	}
	if err := w.WriteFile(*out); err != nil {
		return err
	}

	st, err := os.Stat(*out)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d objects, %s\n", *out, *objects, humanize.Bytes(uint64(st.Size())))
	return nil
}

// ramp produces a deterministic value series so generated files diff
// cleanly between runs.
func ramp(scale float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = scale * float64(i+1)
	}
	return out
}
