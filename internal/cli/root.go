package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the fieldserve command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fieldserve",
		Short: "Work-order management backend",
		Long: `fieldserve is a metadata-driven work-order management backend.
A declarative entity catalog drives generic CRUD, search, row-level
security, and status flows over PostgreSQL.`,
		SilenceUsage: true,
	}

	root.AddCommand(NewServeCmd())
	root.AddCommand(NewValidateCmd())

	return root
}
