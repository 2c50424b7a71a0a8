package route

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	xerrors "SwapRelay/internal/errors"
)

// Calldata captured from a mainnet-fork run: 0.01 ETH into 1INCH through the
// AggregationRouterV5 generic swap.
const forkSwapPayload = "0x12aa3caf0000000000000000000000007122db0ebe4eb9b434a9f2ffe6760bc03bfbd0e0000000000000000000000000eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee000000000000000000000000111111111117dc0aa78b770fa6a738034120c3020000000000000000000000007122db0ebe4eb9b434a9f2ffe6760bc03bfbd0e00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000002386f26fc100000000000000000000000000000000000000000000000000016da5921f73134826000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000001400000000000000000000000000000000000000000000000000000000000000160000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000cd0000000000000000000000000000000000000000000000af00002000000600206b4be0b94041c02aaa39b223fe8d0a0e5c4f27ead9083c756cc2d0e30db00c20c02aaa39b223fe8d0a0e5c4f27ead9083c756cc226aad2da94c59524ac0d93f6d6cbf9071d7086f26ae4071138002dc6c026aad2da94c59524ac0d93f6d6cbf9071d7086f21111111254eeb25477b68fb85ed929f73a9605820000000000000000000000000000000000000000000000000000000000000001c02aaa39b223fe8d0a0e5c4f27ead9083c756cc200000000000000000000000000000000000000cfee7c08"

func TestOneInchSelector(t *testing.T) {
	d := MustOneInchV5()
	require.Equal(t, SwapSelector, d.method.ID)
}

func TestDecodeForkPayload(t *testing.T) {
	d := MustOneInchV5()

	desc, err := d.Decode(common.FromHex(forkSwapPayload))
	require.NoError(t, err)

	require.Equal(t, common.HexToAddress("0x7122db0ebe4eb9b434a9f2ffe6760bc03bfbd0e0"), desc.Executor)
	require.Equal(t, common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"), desc.SrcToken)
	require.Equal(t, common.HexToAddress("0x111111111117dc0aa78b770fa6a738034120c302"), desc.DstToken)
	require.Equal(t, common.Address{}, desc.DstReceiver)
	require.Equal(t, "10000000000000000", desc.Amount.String())
	require.Equal(t, 0, desc.Flags.Sign())
	require.Empty(t, desc.Permit)
	require.Len(t, desc.Data, 0xcd)
}

func TestEncodeDecodeAgree(t *testing.T) {
	d := MustOneInchV5()
	in := Description{
		Executor:        common.HexToAddress("0x01"),
		SrcToken:        common.HexToAddress("0xa0"),
		DstToken:        common.HexToAddress("0xb0"),
		SrcReceiver:     common.HexToAddress("0x01"),
		Amount:          big.NewInt(1000),
		MinReturnAmount: big.NewInt(450),
		Data:            []byte{0xde, 0xad},
	}

	payload, err := d.Encode(in)
	require.NoError(t, err)
	require.Equal(t, SwapSelector, payload[:4])

	out, err := d.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, in.SrcToken, out.SrcToken)
	require.Equal(t, in.DstToken, out.DstToken)
	require.Equal(t, int64(1000), out.Amount.Int64())
	require.Equal(t, int64(450), out.MinReturnAmount.Int64())
	require.Equal(t, []byte{0xde, 0xad}, out.Data)

	result, err := d.EncodeResult(big.NewInt(500), big.NewInt(1000))
	require.NoError(t, err)
	ret, spent, err := d.DecodeResult(result)
	require.NoError(t, err)
	require.Equal(t, int64(500), ret.Int64())
	require.Equal(t, int64(1000), spent.Int64())
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	d := MustOneInchV5()

	cases := map[string][]byte{
		"empty":          nil,
		"short":          {0x12, 0xaa},
		"wrong selector": common.FromHex("0xa9059cbb0000"),
		"truncated":      common.FromHex(forkSwapPayload)[:100],
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode(payload)
			require.Error(t, err)
			require.Equal(t, CodeMalformedPayload, xerrors.CodeOf(err))
		})
	}
}
