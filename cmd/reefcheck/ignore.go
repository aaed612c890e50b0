package main

import (
	"github.com/spf13/cobra"
)

func newIgnoreCmd(a *app) *cobra.Command {
	var recordID, key, identity, rowID string
	var undo bool
	cmd := &cobra.Command{
		Use:   "ignore",
		Short: "Dismiss or restore an outcome in a stored report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			report, err := svc.Ignore(ctx, recordID, key, identity, rowID, !undo)
			if err != nil {
				return err
			}
			return a.printJSON(report)
		},
	}
	cmd.Flags().StringVar(&recordID, "record", "", "id of a stored draft")
	cmd.Flags().StringVar(&key, "path", "", "report key of the outcome")
	cmd.Flags().StringVar(&identity, "identity", "", "validation identity of the outcome")
	cmd.Flags().StringVar(&rowID, "row", "", "row id for row-level outcomes")
	cmd.Flags().BoolVar(&undo, "undo", false, "restore a dismissed outcome")
	for _, name := range []string{"record", "path", "identity"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
