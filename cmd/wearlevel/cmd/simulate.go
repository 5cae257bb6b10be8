package cmd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ssargent/wearlevel/pkg/device"
	"github.com/ssargent/wearlevel/pkg/wearlevel"
)

type simulationReport struct {
	Writes      int               `json:"writes"`
	Wraparounds uint64            `json:"wraparounds"`
	Slots       int               `json:"slots"`
	FinalValid  bool              `json:"final_valid"`
	Wear        device.WearReport `json:"wear"`
}

func newSimulateCmd() *cobra.Command {
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write many records to an in-memory device and report the wear",
		Long: `Run a number of writes against an in-memory device of the configured
size and report how the writes were spread across its cells. The
configured device itself is not touched.

Examples:
  wearlevel simulate --writes 10000
  wearlevel simulate --size 256 --record-size 8 --buckets 16`,
		RunE: func(cmd *cobra.Command, args []string) error {
			writes, _ := cmd.Flags().GetInt("writes")
			buckets, _ := cmd.Flags().GetInt("buckets")

			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			if writes < 0 {
				return fmt.Errorf("--writes must not be negative")
			}

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			report, err := simulate(cfg.Device.Size, cfg.Record.Size, writes, buckets, storeOptions(cmd, cfg)...)
			if err != nil {
				return err
			}

			if format == formatJSON {
				return printJSON(cmd, report)
			}

			w := newTable(cmd)
			fmt.Fprintf(w, "Writes:\t%d\n", report.Writes)
			fmt.Fprintf(w, "Wraparounds:\t%d\n", report.Wraparounds)
			fmt.Fprintf(w, "Slots:\t%d\n", report.Slots)
			fmt.Fprintf(w, "Cell writes:\t%d\n", report.Wear.TotalWrites)
			fmt.Fprintf(w, "Cells written:\t%d of %d\n", report.Wear.CellsWritten, report.Wear.Size)
			fmt.Fprintf(w, "Min/mean/max:\t%d / %.1f / %d\n", report.Wear.MinWrites, report.Wear.MeanWrites, report.Wear.MaxWrites)
			fmt.Fprintf(w, "Hottest cell:\t0x%04X\n", report.Wear.HottestAddress)
			fmt.Fprintf(w, "Final record valid:\t%t\n", report.FinalValid)
			if err := w.Flush(); err != nil {
				return err
			}

			printHistogram(cmd, report.Wear)
			return nil
		},
	}
	simulateCmd.Flags().Int("writes", 1000, "Number of records to write")
	simulateCmd.Flags().Int("buckets", 8, "Histogram buckets in the wear report")
	addOutputFlag(simulateCmd)
	return simulateCmd
}

// simulate formats a fresh in-memory device and writes records numbered
// 0..writes-1, counting only the record writes
func simulate(size, recordSize, writes, buckets int, opts ...wearlevel.Option) (*simulationReport, error) {
	if size <= 0 || size > device.MaxSize {
		return nil, fmt.Errorf("%w: %d", device.ErrInvalidSize, size)
	}

	wc := device.NewWearCounter(device.NewMemory(size))
	store, err := wearlevel.NewStore(wc, opts...)
	if err != nil {
		return nil, err
	}
	if err := store.Format(); err != nil {
		return nil, err
	}
	if _, err := store.Init(); err != nil {
		return nil, err
	}
	wc.Reset()

	payload := make([]byte, recordSize)
	for i := 0; i < writes; i++ {
		fillPayload(payload, uint32(i))
		if err := store.Write(payload); err != nil {
			return nil, fmt.Errorf("write %d failed: %w", i, err)
		}
	}

	report := &simulationReport{
		Writes:      writes,
		Wraparounds: store.Stats().Wraparounds,
		Slots:       store.Slots(recordSize),
		Wear:        wc.Wear(buckets),
	}

	if writes > 0 {
		buf := make([]byte, recordSize)
		report.FinalValid = store.Read(buf) == nil && bytes.Equal(buf, payload)
	}

	return report, nil
}

// fillPayload writes n little-endian into the leading bytes of payload
func fillPayload(payload []byte, n uint32) {
	var counter [4]byte
	binary.LittleEndian.PutUint32(counter[:], n)
	copy(payload, counter[:])
}

func printHistogram(cmd *cobra.Command, report device.WearReport) {
	if len(report.Buckets) == 0 {
		return
	}

	peak := 0
	for _, n := range report.Buckets {
		if n > peak {
			peak = n
		}
	}

	cmd.Println("Writes per address range:")
	for i, n := range report.Buckets {
		bar := 0
		if peak > 0 {
			bar = n * 40 / peak
		}
		start := (i*report.Size + len(report.Buckets) - 1) / len(report.Buckets)
		cmd.Printf("  0x%04X %8d %s\n", start, n, strings.Repeat("#", bar))
	}
}
