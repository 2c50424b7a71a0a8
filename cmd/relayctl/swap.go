package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"SwapRelay/sdk/go/swaprelay"
)

func newSwapCmd() *cobra.Command {
	var (
		caller  string
		value   string
		timeout time.Duration
		payload payloadFlags
	)
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Submit a swap to the relay",
		Long: `Submit a swap to the relay. The calldata is either passed verbatim with
--payload or built from --src, --dst, --amount and --min-return.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if !common.IsHexAddress(caller) {
				return fmt.Errorf("--caller must be an address, got %q", caller)
			}
			raw, desc, err := payload.build()
			if err != nil {
				return err
			}
			attached, err := parseValue(value)
			if err != nil {
				return err
			}
			client, err := swaprelay.NewClient(cfg.APIURL, nil)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			s.Writer = cmd.ErrOrStderr()
			s.Suffix = fmt.Sprintf(" Swapping %s %s -> %s...", desc.Amount, desc.SrcToken.Hex(), desc.DstToken.Hex())
			if !jsonOutput(cmd) {
				s.Start()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			result, err := client.Swap(ctx, swaprelay.SwapRequest{
				Caller:  common.HexToAddress(caller).Hex(),
				Value:   attached.String(),
				Payload: hexutil.Encode(raw),
			})
			s.Stop()
			if err != nil {
				var apiErr *swaprelay.APIError
				if errors.As(err, &apiErr) && apiErr.Reason() != "" {
					return fmt.Errorf("%w (router: %s)", err, apiErr.Reason())
				}
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(w, result)
			}
			printSuccess(w, "Swap settled")
			printField(w, "tx", result.TxID)
			printField(w, "gross", result.GrossOutput)
			printField(w, "fee", result.FeeAmount)
			printField(w, "net", color.GreenString(result.NetOutput))
			printField(w, "native refund", result.NativeRefund)
			printField(w, "input refund", result.InputRefund)
			return nil
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "Account submitting the swap")
	cmd.Flags().StringVar(&value, "value", "0", "Attached native value in wei")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	payload.register(cmd)
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}
