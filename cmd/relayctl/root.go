package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "relayctl",
		Short: "Inspect, price and submit swaps through a SwapRelay deployment",
		Long: `relayctl talks to a swaprelayd daemon over HTTP and, for preflight checks,
to any EVM node over JSON-RPC.

Examples:
  relayctl decode 0x12aa3caf...
  relayctl fee 1000000 --bps 30
  relayctl swap --caller 0xA11CE... --src 0xEeee... --dst 0x1111... --amount 1000000000000000000 --value 1000000000000000000
  relayctl settlements --limit 10
  relayctl preflight --caller 0xA11CE... --payload 0x12aa3caf... --rpc-url https://...`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	root.PersistentFlags().String("api-url", "", "swaprelayd base URL (env SWAPRELAY_API_URL)")

	root.AddCommand(
		newDecodeCmd(),
		newFeeCmd(),
		newSwapCmd(),
		newSettlementsCmd(),
		newPreflightCmd(),
	)
	return root
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printField(w io.Writer, name string, value any) {
	fmt.Fprintf(w, "  %-16s %v\n", name+":", value)
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "\n%s %v\n\n", color.RedString("Error:"), err)
}

func printSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "\n%s\n\n", color.GreenString(message))
}
