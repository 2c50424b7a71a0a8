package main

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"SwapRelay/internal/route"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDecodeCommand(t *testing.T) {
	payload, err := route.MustOneInchV5().Encode(route.Description{
		SrcToken:        common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"),
		DstToken:        common.HexToAddress("0x111111111117dC0aa78b770fA6A738034120C302"),
		Amount:          big.NewInt(1_000_000),
		MinReturnAmount: big.NewInt(42),
	})
	require.NoError(t, err)

	out, err := run(t, "decode", hexutil.Encode(payload), "--json")
	require.NoError(t, err)

	var decoded decodedPayload
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Equal(t, "1000000", decoded.Amount)
	require.Equal(t, "42", decoded.MinReturnAmount)
	require.Equal(t, "0x111111111117dC0aa78b770fA6A738034120C302", decoded.DstToken)

	_, err = run(t, "decode", "0xdeadbeef")
	require.Error(t, err)
	_, err = run(t, "decode", "not-hex")
	require.ErrorContains(t, err, "payload")
}

func TestFeeCommand(t *testing.T) {
	out, err := run(t, "fee", "1000", "--bps", "30", "--json")
	require.NoError(t, err)

	var split map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &split))
	require.Equal(t, "3", split["fee"])
	require.Equal(t, "997", split["net"])

	out, err = run(t, "fee", "1000")
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "1000"))

	_, err = run(t, "fee", "-5", "--bps", "30")
	require.Error(t, err)
}

func TestFeeReadsEnvironment(t *testing.T) {
	t.Setenv("SWAPRELAY_FEE_BPS", "100")
	out, err := run(t, "fee", "1000", "--json")
	require.NoError(t, err)
	require.Contains(t, out, `"fee": "10"`)
}

func TestPayloadFlagsBuild(t *testing.T) {
	p := payloadFlags{
		src:       "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE",
		dst:       "0x111111111117dC0aa78b770fA6A738034120C302",
		amount:    "0x10",
		minReturn: "1",
	}
	raw, desc, err := p.build()
	require.NoError(t, err)
	require.Equal(t, int64(16), desc.Amount.Int64())

	decoded, err := route.MustOneInchV5().Decode(raw)
	require.NoError(t, err)
	require.Equal(t, desc.DstToken, decoded.DstToken)

	p.dst = "nope"
	_, _, err = p.build()
	require.ErrorContains(t, err, "--dst")
}
