package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"reefcore/internal/infra/persistence/memory"
	"reefcore/internal/validation/pipelines"
	"reefcore/pkg/domain"
)

func newPipelinesCmd(a *app) *cobra.Command {
	var protocol string
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "List the validations of each protocol pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Listing needs no reference data; an empty store satisfies the builders.
			built := pipelines.MustBuild(pipelines.Deps{Refs: memory.NewStore()})
			protocols := domain.Protocols()
			if protocol != "" {
				p := domain.Protocol(protocol)
				if !p.Valid() {
					return fmt.Errorf("unknown protocol %q", protocol)
				}
				protocols = []domain.Protocol{p}
			}
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			for _, p := range protocols {
				pipeline := built[p]
				fmt.Fprintf(w, "# %s (version %d)\n", p, pipeline.Version())
				for _, v := range pipeline.Validations() {
					paths := make([]string, 0, len(v.Paths()))
					for _, path := range v.Paths() {
						paths = append(paths, path.String())
					}
					live := ""
					if v.RequiresInstance() {
						live = "live"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						v.Identity(), v.Name(), v.Level(), v.Type(), strings.Join(paths, ","), live)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&protocol, "protocol", "", "limit output to one protocol")
	return cmd
}
