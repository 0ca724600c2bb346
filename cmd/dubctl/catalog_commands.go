package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubctl/internal/language"
	"dubctl/internal/stages"
)

func newStagesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "stages",
		Short:       "List the pipeline stages a job moves through",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := stages.Default()
			if asJSON {
				return writeJSON(cmd, catalog)
			}
			rows := make([][]string, 0, len(catalog))
			for i, def := range catalog {
				rows = append(rows, []string{fmt.Sprint(i + 1), def.Icon, def.Label, def.Key})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "", "Stage", "Key"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	return cmd
}

type languageRow struct {
	Name    string `json:"name"`
	Display string `json:"display"`
	Code    string `json:"code"`
	Voice   string `json:"voice"`
}

func newLanguagesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "languages",
		Short:       "List the supported target languages",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			all := language.All()
			entries := make([]languageRow, 0, len(all))
			for _, target := range all {
				entries = append(entries, languageRow{
					Name:    target.String(),
					Display: target.DisplayName(),
					Code:    target.Code(),
					Voice:   target.Voice(),
				})
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Name, e.Display, e.Code, e.Voice})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Name", "Language", "Code", "Voice"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the languages as JSON")
	return cmd
}
