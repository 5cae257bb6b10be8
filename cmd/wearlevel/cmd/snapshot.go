package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/ssargent/wearlevel/pkg/storage"
)

func openSnapshots(cmd *cobra.Command) (*storage.SnapshotStore, error) {
	cfg, err := configFrom(cmd)
	if err != nil {
		return nil, err
	}
	return storage.NewSnapshotStore(cfg.Snapshots.Dir)
}

func newSnapshotCmd() *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and restore device images",
	}

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Archive the current device image",
		RunE: func(cmd *cobra.Command, args []string) error {
			label, _ := cmd.Flags().GetString("label")

			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			image, err := storage.Capture(s.dev)
			if err != nil {
				return err
			}

			snapshots, err := openSnapshots(cmd)
			if err != nil {
				return err
			}
			defer snapshots.Close()

			id, err := snapshots.Save(image, label, s.store.BaseAddress())
			if err != nil {
				return err
			}

			cmd.Printf("Saved snapshot %s (%d bytes, base 0x%04X)\n", id, len(image), s.store.BaseAddress())
			return nil
		},
	}
	saveCmd.Flags().StringP("label", "l", "", "Label stored with the snapshot")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived images, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			snapshots, err := openSnapshots(cmd)
			if err != nil {
				return err
			}
			defer snapshots.Close()

			infos, err := snapshots.List()
			if err != nil {
				return err
			}

			if format == formatJSON {
				return printJSON(cmd, infos)
			}

			if len(infos) == 0 {
				cmd.Println("No snapshots")
				return nil
			}

			w := newTable(cmd)
			fmt.Fprintf(w, "ID\tCREATED\tSIZE\tBASE\tLABEL\n")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%d\t0x%04X\t%s\n",
					info.ID, info.CreatedAt.Format(time.RFC3339), info.Size, info.BaseAddress, info.Label)
			}
			return w.Flush()
		},
	}
	addOutputFlag(listCmd)

	restoreCmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Write an archived image back onto the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := storage.ParseID(args[0])
			if err != nil {
				return err
			}

			snapshots, err := openSnapshots(cmd)
			if err != nil {
				return err
			}
			defer snapshots.Close()

			snap, err := snapshots.Load(id)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := storage.Restore(s.dev, snap.Image); err != nil {
				return err
			}

			scan, err := s.store.Init()
			if err != nil {
				return err
			}

			cmd.Printf("Restored snapshot %s\n", id)
			if scan.Found {
				cmd.Printf("Record found at 0x%04X\n", scan.Address)
			} else {
				cmd.Printf("No record found\n")
			}
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an archived image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := storage.ParseID(args[0])
			if err != nil {
				return err
			}

			snapshots, err := openSnapshots(cmd)
			if err != nil {
				return err
			}
			defer snapshots.Close()

			if err := snapshots.Delete(id); err != nil {
				return err
			}

			cmd.Printf("Deleted snapshot %s\n", id)
			return nil
		},
	}

	snapshotCmd.AddCommand(saveCmd, listCmd, restoreCmd, deleteCmd)
	return snapshotCmd
}
