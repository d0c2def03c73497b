package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage the acting user's documents",
	Long:  `List, download, or delete documents visible to the acting user.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible documents",
	RunE:  runDocumentList,
}

var documentDownloadCmd = &cobra.Command{
	Use:   "download [doc-id] [output-file]",
	Short: "Download a document's original bytes",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocumentDownload,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and all derived data",
	Long: `Removes the document record, its chunks, its vector points and
any retained original bytes. Only the owner may delete.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentDelete,
}

var documentListPatient string

func init() {
	documentListCmd.Flags().StringVar(&documentListPatient, "patient", "", "scope to one patient (professionals)")
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentDownloadCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	actor, err := caller()
	if err != nil {
		return err
	}

	docs, err := documentService.List(context.Background(), actor, documentListPatient)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents.")
		return nil
	}
	for _, doc := range docs {
		cmd.Printf("  %s  %-30s  %8d bytes  %s\n",
			doc.ID, doc.Filename, doc.ByteSize, doc.UploadedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runDocumentDownload(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	actor, err := caller()
	if err != nil {
		return err
	}

	data, doc, err := documentService.Download(context.Background(), actor, args[0])
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.WriteFile(args[1], data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", args[1], err)
	}
	cmd.Printf("Wrote %s (%d bytes) to %s\n", doc.Filename, len(data), args[1])
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	actor, err := caller()
	if err != nil {
		return err
	}

	if err := documentService.Delete(context.Background(), actor, args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Deleted %s\n", args[0])
	return nil
}
