package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

var askPatient string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the acting user's visible documents",
	Long: `Retrieves relevant context and synthesises an answer. Patients
get plain-language answers; professionals get clinical ones. Requires a
configured completion provider.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askPatient, "patient", "", "scope to one patient (professionals)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("no completion provider configured")
	}

	actor, err := caller()
	if err != nil {
		return err
	}

	answer, err := answerService.Answer(context.Background(), actor, args[0], domain.RetrievalOptions{
		PatientID: askPatient,
	})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(answer.Text)
	if len(answer.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for _, src := range answer.Sources {
			cmd.Printf("  - %s (%.2f)\n", src.Filename, src.Score)
		}
	}
	return nil
}
