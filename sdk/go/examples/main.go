package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"SwapRelay/sdk/go/swaprelay"
)

func main() {
	baseURL := os.Getenv("SWAPRELAY_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	client, err := swaprelay.NewClient(baseURL, nil)
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := client.Relay(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Printf("relay %s routes through %s, fee %d bps\n", info.Address, info.Router, info.FeeBps)

	list, err := client.Settlements(ctx, 5)
	if err != nil {
		panic(err)
	}
	for _, s := range list {
		fmt.Printf("%s %s -> %s: gross %s fee %s net %s\n", s.TxID, s.InputAsset, s.OutputAsset, s.GrossOutput, s.FeeAmount, s.NetOutput)
	}
}
