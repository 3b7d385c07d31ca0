package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/hupe1980/bloomgo"
	"github.com/hupe1980/bloomgo/codec"
	"github.com/hupe1980/bloomgo/persistence"
)

func runInfo(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "emit machine-readable stats")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 {
		return errors.New("usage: bloomtool info [-json] <filterfile>")
	}

	f, err := persistence.LoadFilter(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	if *asJSON {
		return writeStatsJSON(stdout, f)
	}

	return writeStatsText(stdout, f)
}

// infoOutput wraps the variant-specific stats so JSON consumers can dispatch
// on the variant without sniffing fields.
type infoOutput struct {
	Variant string `json:"variant"`
	Stats   any    `json:"stats"`
}

func filterStats(f bloomgo.Filter) (any, error) {
	switch v := f.(type) {
	case *bloomgo.BloomFilter:
		return v.Stats(), nil
	case *bloomgo.CountingFilter:
		return v.Stats(), nil
	case *bloomgo.DecayingFilter:
		return v.Stats(), nil
	case *bloomgo.DecayingCountingFilter:
		return v.Stats(), nil
	default:
		return nil, fmt.Errorf("no stats for variant %s", f.Variant())
	}
}

func writeStatsJSON(w io.Writer, f bloomgo.Filter) error {
	stats, err := filterStats(f)
	if err != nil {
		return err
	}

	data, err := codec.Default.Marshal(infoOutput{
		Variant: f.Variant().String(),
		Stats:   stats,
	})
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func writeStatsText(w io.Writer, f bloomgo.Filter) error {
	rows := statRows(f)

	width := 0
	for _, r := range rows {
		if len(r[0]) > width {
			width = len(r[0])
		}
	}

	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-*s %s\n", width+1, r[0]+":", r[1]); err != nil {
			return err
		}
	}

	return nil
}

func statRows(f bloomgo.Filter) [][2]string {
	rows := [][2]string{
		{"name", f.Name()},
		{"variant", f.Variant().String()},
		{"slot count", strconv.FormatUint(f.SlotCount(), 10)},
		{"hash count per element", strconv.FormatUint(uint64(f.HashCount()), 10)},
		{"expected number of elements", strconv.FormatUint(f.ExpectedElements(), 10)},
		{"target false positive rate", fmt.Sprintf("%.4f%%", f.TargetFalsePositiveRate()*100)},
	}

	if b, ok := f.(interface{ BufferBytes() uint64 }); ok {
		rows = append(rows, [2]string{"buffer size", humanize.IBytes(b.BufferBytes())})
	}

	switch v := f.(type) {
	case *bloomgo.BloomFilter:
		rows = append(rows,
			[2]string{"additions", strconv.FormatUint(v.Additions(), 10)},
			[2]string{"capacity used", fmt.Sprintf("%.2f%%", v.Capacity())},
		)
	case *bloomgo.CountingFilter:
		s := v.Stats()
		rows = append(rows,
			[2]string{"counter width", fmt.Sprintf("%d bits", s.CounterWidth)},
			[2]string{"average count", fmt.Sprintf("%.2f", s.AverageCount)},
		)
	case *bloomgo.DecayingFilter:
		s := v.Stats()
		rows = append(rows,
			[2]string{"timeout", fmt.Sprintf("%d s", s.TimeoutSeconds)},
			[2]string{"timestamp width", fmt.Sprintf("%d bits", s.TimestampWidth)},
			[2]string{"wheel period", strconv.FormatUint(s.WheelPeriod, 10)},
			[2]string{"elapsed", fmt.Sprintf("%d s", s.ElapsedSeconds)},
			[2]string{"expired slots", strconv.FormatUint(s.ExpiredCount, 10)},
		)
	case *bloomgo.DecayingCountingFilter:
		s := v.Stats()
		rows = append(rows,
			[2]string{"timeout", fmt.Sprintf("%d s", s.TimeoutSeconds)},
			[2]string{"counter width", fmt.Sprintf("%d bits", s.CounterWidth)},
			[2]string{"timestamp width", fmt.Sprintf("%d bits", s.TimestampWidth)},
			[2]string{"wheel period", strconv.FormatUint(s.WheelPeriod, 10)},
			[2]string{"elapsed", fmt.Sprintf("%d s", s.ElapsedSeconds)},
			[2]string{"expired slots", strconv.FormatUint(s.ExpiredCount, 10)},
			[2]string{"average count", fmt.Sprintf("%.2f", s.AverageCount)},
		)
	}

	if e, ok := f.(interface{ EstimateFalsePositiveRate() float64 }); ok {
		rows = append(rows, [2]string{"estimated false positive rate", fmt.Sprintf("%.4f%%", e.EstimateFalsePositiveRate()*100)})
	}

	return append(rows, [2]string{"saturation", fmt.Sprintf("%.4f%%", f.Saturation())})
}
