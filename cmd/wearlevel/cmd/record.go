package cmd

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ssargent/wearlevel/pkg/crc16"
)

var errRecordInvalid = errors.New("record checksum does not verify")

// parsePayload decodes arg and zero-pads it to size bytes
func parsePayload(arg string, isHex bool, size int) ([]byte, error) {
	data := []byte(arg)
	if isHex {
		decoded, err := hex.DecodeString(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
		data = decoded
	}
	if len(data) > size {
		return nil, fmt.Errorf("payload is %d bytes, record size is %d", len(data), size)
	}

	payload := make([]byte, size)
	copy(payload, data)
	return payload, nil
}

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format",
		Short: "Erase the device and place an empty marker at address 0",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.store.Format(); err != nil {
				return err
			}
			if _, err := s.store.Init(); err != nil {
				return err
			}

			cmd.Printf("Formatted %d bytes\n", s.dev.Size())
			return nil
		},
	}
}

func newWriteCmd() *cobra.Command {
	writeCmd := &cobra.Command{
		Use:   "write <payload>",
		Short: "Store a new record",
		Long: `Store a new record one byte past the current one. Payloads shorter than
the record size are padded with zero bytes.

Examples:
  wearlevel write hello
  wearlevel write --hex 01020304`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			isHex, _ := cmd.Flags().GetBool("hex")

			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			payload, err := parsePayload(args[0], isHex, s.cfg.Record.Size)
			if err != nil {
				return err
			}

			if err := s.store.Write(payload); err != nil {
				return err
			}

			cmd.Printf("Wrote %d bytes at 0x%04X\n", len(payload), s.store.BaseAddress())
			return nil
		},
	}
	writeCmd.Flags().Bool("hex", false, "Payload is hex encoded")
	return writeCmd
}

func newReadCmd() *cobra.Command {
	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Print the current record",
		RunE: func(cmd *cobra.Command, args []string) error {
			isHex, _ := cmd.Flags().GetBool("hex")

			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			buf := make([]byte, s.cfg.Record.Size)
			if err := s.store.Read(buf); err != nil {
				return err
			}

			if isHex {
				cmd.Println(hex.EncodeToString(buf))
			} else {
				cmd.Println(string(bytes.TrimRight(buf, "\x00")))
			}
			return nil
		},
	}
	readCmd.Flags().Bool("hex", false, "Print the payload hex encoded")
	return readCmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the current record against its checksum",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			ok, err := s.store.Verify(s.cfg.Record.Size)
			if err != nil {
				return err
			}
			if !ok {
				cmd.Printf("Record at 0x%04X is invalid\n", s.store.BaseAddress())
				return errRecordInvalid
			}

			cmd.Printf("Record at 0x%04X is valid\n", s.store.BaseAddress())
			return nil
		},
	}
}

func newChecksumCmd() *cobra.Command {
	checksumCmd := &cobra.Command{
		Use:   "checksum <payload>",
		Short: "Print the CRC16 a payload would be stored with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			isHex, _ := cmd.Flags().GetBool("hex")

			data := []byte(args[0])
			if isHex {
				decoded, err := hex.DecodeString(args[0])
				if err != nil {
					return fmt.Errorf("invalid hex payload: %w", err)
				}
				data = decoded
			}

			cmd.Printf("0x%04X\n", crc16.Checksum(data))
			return nil
		},
	}
	checksumCmd.Flags().Bool("hex", false, "Payload is hex encoded")
	return checksumCmd
}
