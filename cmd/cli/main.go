// Package main implements a command-line client for a segment-file queue.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dsjohal14/segqueue/internal/libs/config"
	"github.com/dsjohal14/segqueue/internal/queue"
)

var (
	queueDir      string
	segmentPrefix string
	maxSegSize    int64
)

func main() {
	root := &cobra.Command{Use: "segqueue", Short: "Inspect and drive a segment-file queue"}

	root.PersistentFlags().StringVar(&queueDir, "dir", "", "queue directory (defaults to QUEUE_DIR)")
	root.PersistentFlags().StringVar(&segmentPrefix, "prefix", "", "segment file prefix (defaults to SEGMENT_PREFIX)")
	root.PersistentFlags().Int64Var(&maxSegSize, "max-segment-size", 0, "maximum segment size in bytes (defaults to MAX_SEGMENT_SIZE)")

	root.AddCommand(newWriteCmd(), newTailCmd(), newStatCmd(), newGCCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// prefixPath resolves the segment file prefix from flags, falling back to
// environment-driven config when a flag is left at its zero value.
func prefixPath() (string, int64, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", 0, err
	}
	dir := queueDir
	if dir == "" {
		dir = cfg.QueueDir
	}
	prefix := segmentPrefix
	if prefix == "" {
		prefix = cfg.SegmentPrefix
	}
	size := maxSegSize
	if size == 0 {
		size = cfg.MaxSegmentSize
	}
	return filepath.Join(dir, prefix), size, nil
}

func newWriteCmd() *cobra.Command {
	var payload string
	var timestampMs int64
	var hard bool

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Append one message to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, size, err := prefixPath()
			if err != nil {
				return err
			}
			q, err := queue.Open(prefix, size, queue.OpenDefault)
			if err != nil {
				return fmt.Errorf("opening queue: %w", err)
			}
			defer q.Close()

			ts, err := q.Write(timestampMs, []byte(payload))
			if err != nil {
				return fmt.Errorf("writing message: %w", err)
			}
			if err := q.Synchronize(hard); err != nil {
				return fmt.Errorf("synchronizing: %w", err)
			}
			fmt.Printf("wrote message at timestamp_ms=%d\n", ts)
			return nil
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "message payload")
	cmd.Flags().Int64Var(&timestampMs, "timestamp-ms", -1, "timestamp in milliseconds (negative: use current time)")
	cmd.Flags().BoolVar(&hard, "hard", false, "fsync the segment file before returning")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}

func newTailCmd() *cobra.Command {
	var fromMs int64
	var timeoutMs int64
	var follow bool

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print messages at or after a timestamp",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _, err := prefixPath()
			if err != nil {
				return err
			}
			r, err := queue.OpenReader(prefix, fromMs)
			if err != nil {
				return fmt.Errorf("opening reader: %w", err)
			}
			defer r.Close()

			timeout := time.Duration(timeoutMs) * time.Millisecond
			for {
				ts, payload, err := r.Read(timeout)
				if err != nil {
					kind, _ := queue.KindOf(err)
					if kind == queue.KindInfeasible && follow {
						continue
					}
					if kind == queue.KindInfeasible {
						return nil
					}
					return fmt.Errorf("reading: %w", err)
				}
				fmt.Printf("%d\t%s\n", ts, payload)
			}
		},
	}

	cmd.Flags().Int64Var(&fromMs, "from", 0, "start at the first message with timestamp >= from")
	cmd.Flags().Int64Var(&timeoutMs, "timeout-ms", 1000, "how long each read waits for a new message")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep waiting for new messages instead of exiting on timeout")
	return cmd
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "List segment files and their metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _, err := prefixPath()
			if err != nil {
				return err
			}
			paths, err := queue.FindFiles(prefix)
			if err != nil {
				return fmt.Errorf("listing segments: %w", err)
			}
			for _, p := range paths {
				meta, err := queue.ReadFileMetadata(p)
				if err != nil {
					return fmt.Errorf("reading %s: %w", p, err)
				}
				fmt.Printf("%s\tid=%d\tdurable_size=%d\tnewest_timestamp=%d\n",
					filepath.Base(p), meta.FileID, meta.DurableSize, meta.NewestTimestamp)
			}
			return nil
		},
	}
}

func newGCCmd() *cobra.Command {
	var beforeMs int64

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove sealed segments whose newest message is older than a threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, size, err := prefixPath()
			if err != nil {
				return err
			}
			q, err := queue.Open(prefix, size, queue.OpenReadOnly)
			if err != nil {
				return fmt.Errorf("opening queue: %w", err)
			}
			defer q.Close()

			if err := q.Remove(beforeMs); err != nil {
				return fmt.Errorf("removing segments: %w", err)
			}
			fmt.Println("segment removal complete")
			return nil
		},
	}

	cmd.Flags().Int64Var(&beforeMs, "before", 0, "remove sealed segments whose newest timestamp is below this")
	return cmd
}
