// Command twbdiff compares two Tableau workbook revisions from the command
// line and prints the change registry as JSON.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/twbtools/twbdiff/internal/compare"
	"github.com/twbtools/twbdiff/internal/registry"
	"github.com/twbtools/twbdiff/internal/sections"
	"github.com/twbtools/twbdiff/internal/vocab"
	"github.com/twbtools/twbdiff/internal/workbook"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "twbdiff",
		Short:         "Compare two Tableau workbook revisions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompareCmd())
	return root
}

func newCompareCmd() *cobra.Command {
	var (
		vocabPath string
		pretty    bool
	)
	cmd := &cobra.Command{
		Use:   "compare OLD NEW",
		Short: "Diff two workbook files (.twb or .twbx) and print the changes as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(args[0], args[1], vocabPath, pretty, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&vocabPath, "vocab", "", "YAML file with classifier vocabulary overrides")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the JSON output")
	return cmd
}

func runCompare(oldPath, newPath, vocabPath string, pretty bool, out io.Writer) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	v := vocab.Default()
	if vocabPath != "" {
		loaded, err := vocab.Load(vocabPath)
		if err != nil {
			return fmt.Errorf("loading vocabulary: %w", err)
		}
		v = loaded
	}

	oldTree, err := workbook.ParseFile(oldPath)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", oldPath, err)
	}
	newTree, err := workbook.ParseFile(newPath)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", newPath, err)
	}

	reg := registry.New()
	cmp := compare.New(v, log)
	cmp.Run(sections.Extract(oldTree, log), sections.Extract(newTree, log), reg)

	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(reg)
}
