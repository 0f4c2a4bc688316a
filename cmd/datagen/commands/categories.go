package commands

import (
	"fmt"
	"io"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List attack categories and difficulty levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCategories(cmd.OutOrStdout())
		},
	}
}

func printCategories(w io.Writer) error {
	rows := pterm.TableData{{"ID", "Label", "Description"}}
	for _, c := range domain.Categories() {
		rows = append(rows, []string{string(c.ID), c.Label, c.Description})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(rows).Render(); err != nil {
		return fmt.Errorf("render categories: %w", err)
	}

	_, _ = fmt.Fprintln(w)
	for _, d := range domain.Difficulties() {
		if _, err := fmt.Fprintf(w, "%-13s %s\n", d.ID, d.Guidance); err != nil {
			return err
		}
	}
	return nil
}
