package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/kb-chat/internal/media"
)

var (
	ingestAfter bool
	idemKey     string
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload files through signed URLs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		c := newClient(serverURL, token)
		for _, path := range args {
			if err := uploadFile(ctx, c, path, cmd.OutOrStdout()); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		if ingestAfter {
			return runIngest(ctx, c, cmd.OutOrStdout())
		}
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Start a knowledge-base ingestion job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runIngest(cmd.Context(), newClient(serverURL, token), cmd.OutOrStdout())
	},
}

func init() {
	uploadCmd.Flags().BoolVar(&ingestAfter, "ingest", false, "start an ingestion job after all uploads succeed")
	for _, c := range []*cobra.Command{uploadCmd, ingestCmd} {
		c.Flags().StringVar(&idemKey, "idempotency-key", "", "reuse an existing ingestion job for this key")
	}
}

func uploadFile(ctx context.Context, c *client, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	name := filepath.Base(path)

	ticket, err := c.presign(ctx, name, st.Size())
	if err != nil {
		return err
	}

	last := -1
	err = media.Upload(ctx, &http.Client{}, ticket.URL, f, st.Size(), ticket.ContentType, func(sent, total int64) {
		if total <= 0 {
			return
		}
		pct := int(sent * 100 / total)
		if pct != last {
			last = pct
			fmt.Fprintf(out, "\r%s: %3d%%", name, pct)
		}
	})
	if err != nil {
		fmt.Fprintln(out)
		return err
	}
	fmt.Fprintf(out, "\r%s: done -> %s\n", name, ticket.Key)
	return nil
}

func runIngest(ctx context.Context, c *client, out io.Writer) error {
	res, err := c.startIngestion(ctx, idemKey)
	if err != nil {
		return err
	}
	verb := "started"
	if !res.Created {
		verb = "already exists"
	}
	fmt.Fprintf(out, "ingestion job %s %s (status %s)\n", res.Job.ID, verb, res.Job.Status)
	return nil
}
