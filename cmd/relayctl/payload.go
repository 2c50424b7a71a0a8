package main

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"SwapRelay/internal/config"
	"SwapRelay/internal/route"
)

// payloadFlags either carries raw calldata or the fields to build it from.
type payloadFlags struct {
	payload   string
	src       string
	dst       string
	amount    string
	minReturn string
	receiver  string
}

func (p *payloadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.payload, "payload", "", "Raw 0x-prefixed swap calldata")
	cmd.Flags().StringVar(&p.src, "src", "", "Input asset (native sentinel for ETH)")
	cmd.Flags().StringVar(&p.dst, "dst", "", "Output asset")
	cmd.Flags().StringVar(&p.amount, "amount", "", "Input amount in base units")
	cmd.Flags().StringVar(&p.minReturn, "min-return", "1", "Minimum output accepted by the router")
	cmd.Flags().StringVar(&p.receiver, "dst-receiver", "", "Router output receiver (defaults to the relay)")
}

// build returns the calldata and its decoded description.
func (p *payloadFlags) build() ([]byte, route.Description, error) {
	codec := route.MustOneInchV5()
	if p.payload != "" {
		raw, err := hexutil.Decode(p.payload)
		if err != nil {
			return nil, route.Description{}, fmt.Errorf("payload: %w", err)
		}
		desc, err := codec.Decode(raw)
		if err != nil {
			return nil, route.Description{}, err
		}
		return raw, desc, nil
	}

	for name, value := range map[string]string{"--src": p.src, "--dst": p.dst} {
		if !common.IsHexAddress(value) {
			return nil, route.Description{}, fmt.Errorf("%s must be an address, got %q", name, value)
		}
	}
	amount, err := config.ParseAmount(p.amount)
	if err != nil {
		return nil, route.Description{}, fmt.Errorf("--amount: %w", err)
	}
	minReturn, err := config.ParseAmount(p.minReturn)
	if err != nil {
		return nil, route.Description{}, fmt.Errorf("--min-return: %w", err)
	}
	desc := route.Description{
		SrcToken:        common.HexToAddress(p.src),
		DstToken:        common.HexToAddress(p.dst),
		Amount:          amount,
		MinReturnAmount: minReturn,
	}
	if p.receiver != "" {
		if !common.IsHexAddress(p.receiver) {
			return nil, route.Description{}, fmt.Errorf("--dst-receiver must be an address, got %q", p.receiver)
		}
		desc.DstReceiver = common.HexToAddress(p.receiver)
	}
	raw, err := codec.Encode(desc)
	if err != nil {
		return nil, route.Description{}, err
	}
	return raw, desc, nil
}

func parseValue(raw string) (*big.Int, error) {
	if raw == "" {
		return new(big.Int), nil
	}
	v, err := config.ParseAmount(raw)
	if err != nil {
		return nil, fmt.Errorf("--value: %w", err)
	}
	return v, nil
}
