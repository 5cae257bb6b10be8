package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statusReport struct {
	DeviceKind     string `json:"device_kind"`
	DevicePath     string `json:"device_path,omitempty"`
	DeviceSize     int    `json:"device_size"`
	MarkerFound    bool   `json:"marker_found"`
	BaseAddress    uint16 `json:"base_address"`
	Skipped        int    `json:"skipped,omitempty"`
	RecordSize     int    `json:"record_size"`
	Valid          bool   `json:"valid"`
	Slots          int    `json:"slots"`
	MaxPayloadSize int    `json:"max_payload_size"`
	Error          string `json:"error,omitempty"`
}

func newStatusCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Scan the device and report the current record",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			valid, verifyErr := s.store.Verify(s.cfg.Record.Size)

			report := statusReport{
				DeviceKind:     s.cfg.Device.Kind,
				DevicePath:     s.cfg.Device.Path,
				DeviceSize:     s.dev.Size(),
				MarkerFound:    s.scan.Found,
				BaseAddress:    s.store.BaseAddress(),
				Skipped:        s.scan.Skipped,
				RecordSize:     s.cfg.Record.Size,
				Valid:          valid && verifyErr == nil,
				Slots:          s.store.Slots(s.cfg.Record.Size),
				MaxPayloadSize: s.store.MaxPayloadSize(),
			}
			if verifyErr != nil {
				report.Error = verifyErr.Error()
			}

			if format == formatJSON {
				return printJSON(cmd, report)
			}

			w := newTable(cmd)
			fmt.Fprintf(w, "Device:\t%s %s\n", report.DeviceKind, report.DevicePath)
			fmt.Fprintf(w, "Size:\t%d bytes\n", report.DeviceSize)
			fmt.Fprintf(w, "Marker found:\t%t\n", report.MarkerFound)
			fmt.Fprintf(w, "Base address:\t0x%04X\n", report.BaseAddress)
			if report.Skipped > 0 {
				fmt.Fprintf(w, "Skipped markers:\t%d\n", report.Skipped)
			}
			fmt.Fprintf(w, "Record size:\t%d bytes\n", report.RecordSize)
			fmt.Fprintf(w, "Record valid:\t%t\n", report.Valid)
			if report.Error != "" {
				fmt.Fprintf(w, "Verify error:\t%s\n", report.Error)
			}
			fmt.Fprintf(w, "Slots:\t%d\n", report.Slots)
			fmt.Fprintf(w, "Max payload:\t%d bytes\n", report.MaxPayloadSize)
			return w.Flush()
		},
	}
	addOutputFlag(statusCmd)
	return statusCmd
}
