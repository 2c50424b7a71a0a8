package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"SwapRelay/internal/config"
	"SwapRelay/internal/web3"
	"SwapRelay/internal/web3/ethereum"
	"SwapRelay/internal/web3/provider"
	"SwapRelay/sdk/go/swaprelay"
)

func newPreflightCmd() *cobra.Command {
	var (
		caller  string
		value   string
		timeout time.Duration
		payload payloadFlags
	)
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check balance, allowance and attached value before a swap",
		Long: `Check whether a swap would get past the relay's intake.

With --rpc-url or --chains the check reads balances from the chain directly.
Otherwise it asks the swaprelayd daemon.`,
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

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			w := cmd.OutOrStdout()
			if cfg.RPCURL == "" && cfg.ChainsFile == "" {
				client, err := swaprelay.NewClient(cfg.APIURL, nil)
				if err != nil {
					return err
				}
				report, err := client.Preflight(ctx, swaprelay.SwapRequest{
					Caller:  common.HexToAddress(caller).Hex(),
					Value:   attached.String(),
					Payload: hexutil.Encode(raw),
				})
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(w, report)
				}
				printReport(w, report.Ready(), report.Problems, report.Notes, report.Required.String(), report.Balance.String())
				return nil
			}

			reader, relayAddr, sentinel, closeFn, err := openChain(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := web3.Preflight(ctx, reader, web3.PreflightRequest{
				Relay:          relayAddr,
				Caller:         common.HexToAddress(caller),
				NativeSentinel: sentinel,
				Value:          attached,
				Route:          desc,
			})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(w, report)
			}
			printReport(w, report.Ready(), report.Problems, report.Notes, report.Required.String(), report.Balance.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&caller, "caller", "", "Account that will submit the swap")
	cmd.Flags().StringVar(&value, "value", "0", "Native value that will be attached, in wei")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "Request timeout")
	cmd.Flags().String("rpc-url", "", "EVM JSON-RPC endpoint (env SWAPRELAY_RPC_URL)")
	cmd.Flags().String("chains", "", "Chain definitions file (env SWAPRELAY_CHAINS_FILE)")
	cmd.Flags().String("chain", "", "Chain to use from the definitions file")
	cmd.Flags().String("relay", "", "Relay contract address (env SWAPRELAY_RELAY)")
	cmd.Flags().String("native-sentinel", "", "Address standing for the native asset")
	payload.register(cmd)
	_ = cmd.MarkFlagRequired("caller")
	return cmd
}

// openChain resolves the chain reader and the relay it checks against.
func openChain(ctx context.Context, cfg *cliConfig) (web3.Reader, common.Address, common.Address, func(), error) {
	relay := cfg.Relay
	sentinel := cfg.NativeSentinel

	var (
		client web3.Client
		closer func()
	)
	if cfg.ChainsFile != "" {
		registry, err := provider.NewRegistry(ctx, config.Web3Config{ChainsFile: cfg.ChainsFile, DefaultChain: cfg.Chain})
		if err != nil {
			return nil, common.Address{}, common.Address{}, nil, err
		}
		name := registry.DefaultChain()
		def, _ := registry.Definition(name)
		if relay == "" {
			relay = def.Relay
		}
		if def.NativeSentinel != "" {
			sentinel = def.NativeSentinel
		}
		client, err = registry.DefaultClient()
		if err != nil {
			registry.Close()
			return nil, common.Address{}, common.Address{}, nil, err
		}
		closer = registry.Close
	} else {
		c, err := ethereum.NewClient(ctx, ethereum.Config{Name: "cli", RPCURL: cfg.RPCURL})
		if err != nil {
			return nil, common.Address{}, common.Address{}, nil, err
		}
		client, closer = c, c.Close
	}

	if !common.IsHexAddress(relay) {
		closer()
		return nil, common.Address{}, common.Address{}, nil, fmt.Errorf("relay address is required for on-chain preflight, got %q", relay)
	}
	return client, common.HexToAddress(relay), common.HexToAddress(sentinel), closer, nil
}

func printReport(w io.Writer, ready bool, problems, notes []string, required, balance string) {
	if ready {
		printSuccess(w, "Preflight passed")
	} else {
		fmt.Fprintf(w, "\n%s\n\n", color.RedString("Preflight failed"))
	}
	printField(w, "required", required)
	printField(w, "balance", balance)
	for _, p := range problems {
		fmt.Fprintf(w, "  %s %s\n", color.RedString("✗"), p)
	}
	for _, n := range notes {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("!"), n)
	}
}
