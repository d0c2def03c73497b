// Package cli implements the carevault command line interface. It is a
// driving adapter: commands call core services through their ports and
// format the results for the terminal.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
	"github.com/custodia-labs/carevault/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Injected services. The composition root sets these before Execute.
var (
	ingestionService driving.IngestionService
	documentService  driving.DocumentService
	retrievalService driving.RetrievalService
	answerService    driving.AnswerService
	serveHandler     ServeFunc
)

// ServeFunc starts the HTTP server on the given address and blocks.
type ServeFunc func(addr string) error

// Services bundles everything the CLI needs from the composition root.
type Services struct {
	Ingestion driving.IngestionService
	Documents driving.DocumentService
	Retrieval driving.RetrievalService
	Answers   driving.AnswerService
	Serve     ServeFunc
}

// SetServices injects the core services. Must be called before Execute.
func SetServices(s Services) {
	ingestionService = s.Ingestion
	documentService = s.Documents
	retrievalService = s.Retrieval
	answerService = s.Answers
	serveHandler = s.Serve
}

// Identity flags. The CLI is a local administration surface; the caller
// states who they are the same way the HTTP proxy would.
var (
	flagUserID string
	flagRole   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "carevault",
	Short: "Permission-aware retrieval over personal health records",
	Long: `carevault ingests health documents, indexes them for semantic
search, and answers questions over them. Every read is scoped to the
acting user's visibility set and recorded in the audit trail.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagUserID, "user", "", "acting user id")
	rootCmd.PersistentFlags().StringVar(&flagRole, "role", "patient", "acting user role (patient|professional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// caller builds the acting identity from the persistent flags.
func caller() (domain.Identity, error) {
	id := domain.Identity{
		UserID: flagUserID,
		Role:   domain.Role(flagRole),
	}
	if id.UserID == "" {
		return domain.Identity{}, fmt.Errorf("--user is required")
	}
	if !id.Role.Valid() {
		return domain.Identity{}, fmt.Errorf("unknown role %q", flagRole)
	}
	return id, nil
}
