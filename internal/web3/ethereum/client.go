package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"SwapRelay/internal/web3"
)

const erc20ABIJSON = `[
  {"name":"balanceOf","type":"function","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"allowance","type":"function","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name   string
	RPCURL string
	// ChainID, when set, is checked against the node on first use.
	ChainID uint64
}

// Backend is the subset of ethclient.Client the client reads through.
type Backend interface {
	CallContract(ctx context.Context, msg gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Client implements the web3.Client interface for EVM compatible chains.
type Client struct {
	name     string
	expected uint64
	backend  Backend
	closer   func()

	mu      sync.Mutex
	chainID *big.Int
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)

	c := NewClientWithBackend(cfg.Name, eth)
	c.expected = cfg.ChainID
	c.closer = eth.Close
	return c, nil
}

// NewClientWithBackend wraps an existing backend, e.g. a simulated chain.
func NewClientWithBackend(name string, backend Backend) *Client {
	return &Client{name: name, backend: backend}
}

// Name returns the chain name the client was registered under.
func (c *Client) Name() string { return c.name }

// Close releases network connections held by the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer != nil {
		c.closer()
		c.closer = nil
	}
	c.backend = nil
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}
	if c.backend == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取链 ID 失败: %w", err)
	}
	if c.expected != 0 && (!id.IsUint64() || id.Uint64() != c.expected) {
		return nil, fmt.Errorf("链 %s 的 ID 为 %s，配置为 %d", c.name, id, c.expected)
	}
	c.chainID = id
	return new(big.Int).Set(id), nil
}

// NativeBalance returns the latest native balance of holder.
func (c *Client) NativeBalance(ctx context.Context, holder common.Address) (*big.Int, error) {
	backend, err := c.current()
	if err != nil {
		return nil, err
	}
	balance, err := backend.BalanceAt(ctx, holder, nil)
	if err != nil {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}
	return balance, nil
}

// TokenBalance calls ERC20 balanceOf.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	return c.callUint(ctx, token, "balanceOf", holder)
}

// Allowance calls ERC20 allowance.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.callUint(ctx, token, "allowance", owner, spender)
}

func (c *Client) callUint(ctx context.Context, contract common.Address, method string, args ...any) (*big.Int, error) {
	backend, err := c.current()
	if err != nil {
		return nil, err
	}
	input, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("编码 %s 调用失败: %w", method, err)
	}
	output, err := backend.CallContract(ctx, gethcore.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("调用 %s.%s 失败: %w", contract.Hex(), method, err)
	}
	values, err := erc20ABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("解析 %s 返回值失败: %w", method, err)
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s 返回了非 uint256 类型 %T", method, values[0])
	}
	return amount, nil
}

func (c *Client) current() (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	return c.backend, nil
}

var _ web3.Client = (*Client)(nil)
