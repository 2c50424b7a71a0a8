package provider

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"SwapRelay/internal/config"
	"SwapRelay/internal/web3"
)

const chainsYAML = `
chains:
  polygon:
    rpc_url: http://127.0.0.1:8546
    chain_id: 137
  ethereum:
    type: evm
    rpc_url: http://127.0.0.1:8545
    chain_id: 1
    relay: "0x00000000000000000000000000000000000000aa"
`

func TestNewRegistryLoadsChains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.yaml")
	if err := os.WriteFile(path, []byte(chainsYAML), 0o644); err != nil {
		t.Fatalf("write chains: %v", err)
	}

	reg, err := NewRegistry(context.Background(), config.Web3Config{ChainsFile: path})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	defer reg.Close()

	if got := reg.Chains(); !reflect.DeepEqual(got, []string{"ethereum", "polygon"}) {
		t.Fatalf("unexpected chains %v", got)
	}
	if reg.DefaultChain() != "ethereum" {
		t.Fatalf("unexpected default chain %q", reg.DefaultChain())
	}
	client, err := reg.DefaultClient()
	if err != nil || client.Name() != "ethereum" {
		t.Fatalf("unexpected default client %v, %v", client, err)
	}
	def, ok := reg.Definition("ethereum")
	if !ok || def.Relay == "" {
		t.Fatalf("missing relay definition: %+v", def)
	}
	if _, ok := reg.Client("solana"); ok {
		t.Fatal("unexpected client for unknown chain")
	}
}

func TestRegistryRejectsBadDefinitions(t *testing.T) {
	ctx := context.Background()
	if _, err := FromDefinitions(ctx, web3.ChainDefinitions{}, ""); err == nil {
		t.Fatal("expected error for empty definitions")
	}

	defs := web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"near": {Type: "near", RPCURL: "http://127.0.0.1:3030"},
	}}
	if _, err := FromDefinitions(ctx, defs, ""); err == nil || !strings.Contains(err.Error(), "near") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}

	defs = web3.ChainDefinitions{Chains: map[string]web3.ChainDefinition{
		"ethereum": {RPCURL: "http://127.0.0.1:8545"},
	}}
	if _, err := FromDefinitions(ctx, defs, "polygon"); err == nil {
		t.Fatal("expected error for unknown default chain")
	}
}
