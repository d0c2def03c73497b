package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

var (
	searchTopK     int
	searchMinScore float64
	searchPatient  string
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the acting user's visible documents",
	Long: `Runs a semantic search scoped to the acting user's visibility
set. Professionals can focus on one patient with --patient.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "limit", "n", 0, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "drop results below this similarity")
	searchCmd.Flags().StringVar(&searchPatient, "patient", "", "scope to one patient (professionals)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	actor, err := caller()
	if err != nil {
		return err
	}

	results, err := retrievalService.Retrieve(context.Background(), actor, args[0], domain.RetrievalOptions{
		PatientID: searchPatient,
		TopK:      searchTopK,
		MinScore:  searchMinScore,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.RetrievedChunk) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.RetrievedChunk) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		cmd.Printf("  [%d] %s #%d (%.2f)\n",
			i+1, results[i].Document.Filename, results[i].Chunk.Index, results[i].Score)
		cmd.Printf("      %s\n", snippet(results[i].Chunk.Text, 120))
		if len(results[i].Chunk.MedicalKeywords) > 0 {
			cmd.Printf("      Keywords: %v\n", results[i].Chunk.MedicalKeywords)
		}
		cmd.Println()
	}
	return nil
}

// snippet truncates text to at most n runes on a single line.
func snippet(text string, n int) string {
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			runes = runes[:i]
			break
		}
	}
	if len(runes) > n {
		runes = append(runes[:n], '…')
	}
	return string(runes)
}
