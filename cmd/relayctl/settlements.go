package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"SwapRelay/sdk/go/swaprelay"
)

func newSettlementsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "settlements",
		Short: "List the latest recorded settlements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			client, err := swaprelay.NewClient(cfg.APIURL, nil)
			if err != nil {
				return err
			}
			list, err := client.Settlements(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return printJSON(w, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(w, color.YellowString("No settlements recorded yet"))
				return nil
			}
			for _, s := range list {
				fmt.Fprintf(w, "%s  %s\n", color.CyanString(s.TxID), s.Caller)
				printField(w, "input", fmt.Sprintf("%s %s", s.InputAmount, s.InputAsset))
				net := fmt.Sprintf("%s %s", s.NetOutput, s.OutputAsset)
				if s.ZeroOutput {
					net = color.YellowString(net + " (zero output)")
				}
				printField(w, "net", net)
				printField(w, "fee", s.FeeAmount)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of settlements to show")
	return cmd
}
