package cli

import (
	"fmt"
	"io"

	"lifeline/internal/bootstrap"
	"lifeline/internal/player"

	"github.com/spf13/cobra"
)

type playerView struct {
	SKU                    string `json:"sku"`
	IsNewUser              bool   `json:"isNewUser"`
	Nickname               string `json:"nickname"`
	Level                  int    `json:"level"`
	Life                   int    `json:"life"`
	MaxLives               int    `json:"maxLives"`
	NextRefillIn           int    `json:"nextRefillIn"`
	RefillInterval         int    `json:"refillInterval"`
	PromotionRewardGranted bool   `json:"promotionRewardGranted"`
	Data                   string `json:"data"`
}

// NewPlayerCommand creates the player command. It runs a real load, so an unknown SKU is
// provisioned and pending refills are committed.
func NewPlayerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "player <sku>",
		Short: "Load a player through the regeneration flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withServices(cmd.Context(), func(svc *bootstrap.Services) error {
				res, err := svc.Players.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				v := viewOf(args[0], res)
				return rootOpts.emit(cmd.OutOrStdout(), v, func(w io.Writer) {
					fmt.Fprintf(w, "%s (%s)\n", v.SKU, v.Nickname)
					fmt.Fprintf(w, "  level   %d\n", v.Level)
					fmt.Fprintf(w, "  life    %d/%d, next in %ds (every %ds)\n", v.Life, v.MaxLives, v.NextRefillIn, v.RefillInterval)
					if v.IsNewUser {
						fmt.Fprintln(w, "  created on this load")
					}
				})
			})
		},
	}
}

func viewOf(sku string, res player.LoadResult) playerView {
	return playerView{
		SKU:                    sku,
		IsNewUser:              res.IsNewUser,
		Nickname:               res.Nickname,
		Level:                  res.Level,
		Life:                   res.Life,
		MaxLives:               res.MaxLife,
		NextRefillIn:           res.NextRefillIn,
		RefillInterval:         res.RefillInterval,
		PromotionRewardGranted: res.PromotionRewardGranted,
		Data:                   res.Payload,
	}
}
