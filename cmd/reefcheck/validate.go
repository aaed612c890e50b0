package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reefcore/pkg/domain"
)

func newValidateCmd(a *app) *cobra.Command {
	var recordID, draftFile, priorFile string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a stored draft or a draft file",
		Long: `Runs the protocol pipeline for a draft and prints the JSON report.

With --record the stored draft is validated against its stored report and the
new report replaces it. With --file the draft is read from disk, validated
against the configured reference data and nothing is persisted. The command
exits with status 2 when the report contains ERROR outcomes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			var report *domain.Report
			if recordID != "" {
				report, err = svc.ValidateDraft(ctx, recordID)
			} else {
				var draft domain.DraftRecord
				if err := readJSON(draftFile, &draft); err != nil {
					return err
				}
				prior := draft.Validations
				if priorFile != "" {
					prior = &domain.Report{}
					if err := readJSON(priorFile, prior); err != nil {
						return err
					}
				}
				report, err = svc.Validate(ctx, draft, prior)
			}
			if err != nil {
				return err
			}
			if err := a.printJSON(report); err != nil {
				return err
			}
			if report.OverallStatus == domain.StatusError {
				return errBlocking
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&recordID, "record", "", "id of a stored draft")
	cmd.Flags().StringVar(&draftFile, "file", "", "path to a draft JSON file")
	cmd.Flags().StringVar(&priorFile, "prior", "", "path to a prior report JSON file (with --file)")
	cmd.MarkFlagsMutuallyExclusive("record", "file")
	cmd.MarkFlagsMutuallyExclusive("record", "prior")
	cmd.MarkFlagsOneRequired("record", "file")
	return cmd
}

func readJSON(path string, v any) error {
	// #nosec G304 -- path is operator-provided input.
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
