package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/carevault/internal/core/ports/driving"
)

var ingestContentType string

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents for the acting user",
	Long: `Reads each file, extracts its text, and indexes it under the
acting user's identity. Prints one line per document with its id and
chunk count.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestContentType, "content-type", "", "declared MIME type (default: inferred)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	owner, err := caller()
	if err != nil {
		return err
	}

	ctx := context.Background()
	var failed int
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			cmd.PrintErrf("  %s: %v\n", path, err)
			failed++
			continue
		}

		result, err := ingestionService.Ingest(ctx, driving.IngestRequest{
			Owner:       owner,
			Filename:    filepath.Base(path),
			ContentType: ingestContentType,
			Data:        data,
		})
		if err != nil {
			cmd.PrintErrf("  %s: %v\n", path, err)
			failed++
			continue
		}

		cmd.Printf("  %s: %s (%d chunks)", filepath.Base(path), result.Document.ID, result.ChunkCount)
		if result.Warning != "" {
			cmd.Printf(" [%s]", result.Warning)
		}
		cmd.Println()
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
