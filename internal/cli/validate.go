package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fieldserve-backend/internal/engine"
	"fieldserve-backend/internal/metadata"
)

// NewValidateCmd builds the validate command: the catalog contract check,
// runnable in CI before the server ever starts. Exit status 1 on problems.
func NewValidateCmd() *cobra.Command {
	var catalogFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the entity catalog",
		Long: `Validate checks every entity in the catalog (built-in plus the
optional YAML overlay) against the registry invariants and prints a
per-entity report. Problems are listed in full, never just the first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := metadata.LoadRegistry(catalogFile)
			if err != nil {
				return err
			}
			return runValidate(reg)
		},
	}

	cmd.Flags().StringVar(&catalogFile, "catalog", "", "YAML catalog overlay to merge before validating")

	return cmd
}

func runValidate(reg *metadata.Registry) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	problems := reg.Validate()
	byEntity := make(map[string][]string)
	for _, p := range problems {
		name, msg := splitProblem(p)
		byEntity[name] = append(byEntity[name], msg)
	}

	fmt.Println()
	for _, name := range reg.EntityNames() {
		meta, err := reg.Get(name)
		if err != nil {
			return err
		}
		kind := "system"
		if meta.IsBusiness() {
			kind = "business"
		}
		if errs := byEntity[name]; len(errs) > 0 {
			fmt.Printf("%s %-16s %-8s %s\n", red("✗"), name, meta.Category, kind)
			for _, msg := range errs {
				fmt.Printf("    %s\n", red(msg))
			}
			continue
		}
		fmt.Printf("%s %-16s %-8s %s\n", green("✓"), name, meta.Category, kind)
	}

	// problems not attributable to a listed entity (duplicates, parse drift)
	for name, errs := range byEntity {
		if containsName(reg.EntityNames(), name) {
			continue
		}
		fmt.Printf("%s %s\n", yellow("⚠"), name)
		for _, msg := range errs {
			fmt.Printf("    %s\n", yellow(msg))
		}
	}

	fmt.Println()
	if len(problems) > 0 {
		fmt.Printf("%s %d problem(s) found\n", red("✗"), len(problems))
		return fmt.Errorf("catalog validation failed")
	}

	if err := engine.CompileRules(reg); err != nil {
		fmt.Printf("%s %v\n", red("✗"), err)
		return fmt.Errorf("catalog validation failed")
	}

	fmt.Printf("%s %d entities valid\n", green("✓"), len(reg.EntityNames()))
	return nil
}

// splitProblem separates the "entity: message" form Validate emits.
func splitProblem(p string) (string, string) {
	for i := 0; i+1 < len(p); i++ {
		if p[i] == ':' && p[i+1] == ' ' {
			return p[:i], p[i+2:]
		}
	}
	return "", p
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
