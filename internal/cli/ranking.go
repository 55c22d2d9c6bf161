package cli

import (
	"fmt"
	"io"

	"lifeline/internal/bootstrap"
	"lifeline/internal/ranking"

	"github.com/spf13/cobra"
)

// NewRankingCommand creates the ranking command.
func NewRankingCommand(rootOpts *RootOptions) *cobra.Command {
	var sku string

	cmd := &cobra.Command{
		Use:   "ranking",
		Short: "Print the cohort leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withServices(cmd.Context(), func(svc *bootstrap.Services) error {
				res, err := svc.Rankings.Ranking(cmd.Context(), sku)
				if err != nil {
					return err
				}
				return rootOpts.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
					for _, e := range res.Entries {
						fmt.Fprintf(w, "%3d  %-16s  level %-4d  %s\n", e.Rank, e.Nickname, e.Level, e.SKU)
					}
					if res.MyRank != nil {
						fmt.Fprintf(w, "you: %s\n", rankLabel(*res.MyRank))
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&sku, "sku", "", "requester whose own row is reported")
	return cmd
}

func rankLabel(e ranking.Entry) string {
	if e.Rank == ranking.OutOfWindow {
		return fmt.Sprintf("unranked at level %d", e.Level)
	}
	return fmt.Sprintf("#%d at level %d", e.Rank, e.Level)
}
