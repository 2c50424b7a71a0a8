package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"SwapRelay/internal/config"
	"SwapRelay/internal/relay"
)

func newFeeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fee <gross-output>",
		Short: "Split a gross output into the relay fee and the caller's net amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			gross, err := config.ParseAmount(args[0])
			if err != nil {
				return err
			}
			fee, net, err := relay.ComputeFee(gross, cfg.FeeBps)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return printJSON(w, map[string]any{
					"gross":   gross.String(),
					"fee_bps": cfg.FeeBps,
					"fee":     fee.String(),
					"net":     net.String(),
				})
			}
			printField(w, "gross", gross)
			printField(w, "fee", fmt.Sprintf("%s (%d bps)", fee, cfg.FeeBps))
			printField(w, "net", net)
			return nil
		},
	}
	cmd.Flags().Uint64("bps", 0, "Fee in basis points (env SWAPRELAY_FEE_BPS)")
	return cmd
}
