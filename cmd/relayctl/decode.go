package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"SwapRelay/internal/route"
)

type decodedPayload struct {
	Executor        string `json:"executor"`
	SrcToken        string `json:"src_token"`
	DstToken        string `json:"dst_token"`
	SrcReceiver     string `json:"src_receiver"`
	DstReceiver     string `json:"dst_receiver"`
	Amount          string `json:"amount"`
	MinReturnAmount string `json:"min_return_amount"`
	Flags           string `json:"flags"`
	PermitBytes     int    `json:"permit_bytes"`
	DataBytes       int    `json:"data_bytes"`
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <payload>",
		Short: "Decode 1inch AggregationRouterV5 swap calldata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hexutil.Decode(args[0])
			if err != nil {
				return fmt.Errorf("payload: %w", err)
			}
			desc, err := route.MustOneInchV5().Decode(raw)
			if err != nil {
				return err
			}
			out := decodedPayload{
				Executor:        desc.Executor.Hex(),
				SrcToken:        desc.SrcToken.Hex(),
				DstToken:        desc.DstToken.Hex(),
				SrcReceiver:     desc.SrcReceiver.Hex(),
				DstReceiver:     desc.DstReceiver.Hex(),
				Amount:          desc.Amount.String(),
				MinReturnAmount: desc.MinReturnAmount.String(),
				Flags:           desc.Flags.String(),
				PermitBytes:     len(desc.Permit),
				DataBytes:       len(desc.Data),
			}
			w := cmd.OutOrStdout()
			if jsonOutput(cmd) {
				return printJSON(w, out)
			}
			fmt.Fprintln(w, color.CyanString("swap(executor, desc, permit, data)"))
			printField(w, "executor", out.Executor)
			printField(w, "srcToken", out.SrcToken)
			printField(w, "dstToken", out.DstToken)
			printField(w, "srcReceiver", out.SrcReceiver)
			printField(w, "dstReceiver", out.DstReceiver)
			printField(w, "amount", out.Amount)
			printField(w, "minReturn", out.MinReturnAmount)
			printField(w, "flags", out.Flags)
			printField(w, "permit", fmt.Sprintf("%d bytes", out.PermitBytes))
			printField(w, "data", fmt.Sprintf("%d bytes", out.DataBytes))
			return nil
		},
	}
}
