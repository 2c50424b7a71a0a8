// Package web3 connects SwapRelay tooling to real EVM networks: chain
// definitions loaded from YAML, read-only balance and allowance queries, and
// the preflight check a caller runs before handing a payload to the relay.
package web3
