package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"SwapRelay/pkg/logger"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "SWAPRELAY_CONFIG"

// DefaultConfigPath 是未设置环境变量时使用的路径。
const DefaultConfigPath = "configs/swaprelay.json"

// DefaultNativeSentinel 是 1inch 约定的原生币占位地址。
const DefaultNativeSentinel = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// Config 描述了 swaprelayd 在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig   `json:"server"`
	Relay    RelayConfig    `json:"relay"`
	Devnet   DevnetConfig   `json:"devnet"`
	Storage  StorageConfig  `json:"storage"`
	Queue    QueueConfig    `json:"queue"`
	Web3     Web3Config     `json:"web3"`
	Logging  logger.Config  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
	Alerting AlertingConfig `json:"alerting"`
	Runtime  RuntimeConfig  `json:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// RelayConfig 是部署中继时固定下来的参数。
type RelayConfig struct {
	Address        string `json:"address"`
	Router         string `json:"router"`
	FeeRecipient   string `json:"fee_recipient"`
	FeeBps         uint64 `json:"fee_bps"`
	NativeSentinel string `json:"native_sentinel"`
}

// DevnetConfig 描述本地开发链的初始状态。
type DevnetConfig struct {
	Genesis []Allocation `json:"genesis"`
	Pairs   []Pair       `json:"pairs"`
}

// Allocation 是创世时分配给某个地址的资产。asset 为空或等于原生占位地址时表示原生币。
type Allocation struct {
	Holder string `json:"holder"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// Pair 是模拟聚合器上的一条报价。
type Pair struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Numerator   string `json:"numerator"`
	Denominator string `json:"denominator"`
}

// StorageConfig 描述结算记录的存储后端。
type StorageConfig struct {
	Settlements SettlementStoreConfig `json:"settlements"`
}

// SettlementStoreConfig 支持 memory 与 mysql 两种驱动。
type SettlementStoreConfig struct {
	Driver                 string `json:"driver"`
	DSN                    string `json:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds"`
}

// ConnMaxLifetime 返回连接最大存活时间。
func (s SettlementStoreConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(s.ConnMaxLifetimeSeconds) * time.Second
}

// ConnMaxIdleTime 返回连接最大空闲时间。
func (s SettlementStoreConfig) ConnMaxIdleTime() time.Duration {
	return time.Duration(s.ConnMaxIdleTimeSeconds) * time.Second
}

// QueueConfig 描述结算记录投递所使用的队列。
type QueueConfig struct {
	Driver   string         `json:"driver"`
	Size     int            `json:"size"`
	Workers  int            `json:"workers"`
	Redis    RedisConfig    `json:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RedisConfig 是 Redis 队列的连接参数。
type RedisConfig struct {
	Address          string `json:"address"`
	Password         string `json:"password"`
	DB               int    `json:"db"`
	Queue            string `json:"queue"`
	BlockWaitSeconds int    `json:"block_wait_seconds"`
}

// RabbitMQConfig 是 RabbitMQ 队列的连接参数。
type RabbitMQConfig struct {
	URL      string `json:"url"`
	Queue    string `json:"queue"`
	Prefetch int    `json:"prefetch"`
}

// Web3Config 指向链定义文件。
type Web3Config struct {
	ChainsFile   string `json:"chains_file"`
	DefaultChain string `json:"default_chain"`
}

// MetricsConfig 控制独立的指标端口。address 为空时指标挂在 API 服务上。
type MetricsConfig struct {
	Address string `json:"address"`
}

// AlertingConfig 配置告警渠道。
type AlertingConfig struct {
	Log     bool          `json:"log"`
	Webhook WebhookConfig `json:"webhook"`
}

// WebhookConfig 描述 webhook 告警。
type WebhookConfig struct {
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// PathFromEnv 返回配置文件路径。
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Relay.NativeSentinel == "" {
		c.Relay.NativeSentinel = DefaultNativeSentinel
	}

	if c.Storage.Settlements.Driver == "" {
		c.Storage.Settlements.Driver = "memory"
	}

	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Size <= 0 {
		c.Queue.Size = 128
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 2
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "swaprelayd"
	}
	c.Logging.Audit.Path = resolve(baseDir, c.Logging.Audit.Path)

	if c.Web3.ChainsFile != "" {
		c.Web3.ChainsFile = resolve(baseDir, c.Web3.ChainsFile)
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else {
		c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir)
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	}
}

func resolve(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// Validate 检查地址、数值与驱动名称。
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, required bool) {
		if value == "" {
			if required {
				errs = append(errs, fmt.Errorf("%s 不能为空", field))
			}
			return
		}
		if !common.IsHexAddress(value) {
			errs = append(errs, fmt.Errorf("%s 不是合法地址: %q", field, value))
		}
	}
	check("relay.address", c.Relay.Address, true)
	check("relay.router", c.Relay.Router, true)
	check("relay.fee_recipient", c.Relay.FeeRecipient, true)
	check("relay.native_sentinel", c.Relay.NativeSentinel, false)

	for i, a := range c.Devnet.Genesis {
		check(fmt.Sprintf("devnet.genesis[%d].holder", i), a.Holder, true)
		check(fmt.Sprintf("devnet.genesis[%d].asset", i), a.Asset, false)
		if _, err := ParseAmount(a.Amount); err != nil {
			errs = append(errs, fmt.Errorf("devnet.genesis[%d].amount: %w", i, err))
		}
	}
	for i, p := range c.Devnet.Pairs {
		check(fmt.Sprintf("devnet.pairs[%d].from", i), p.From, true)
		check(fmt.Sprintf("devnet.pairs[%d].to", i), p.To, true)
		if _, err := ParseAmount(p.Numerator); err != nil {
			errs = append(errs, fmt.Errorf("devnet.pairs[%d].numerator: %w", i, err))
		}
		if d, err := ParseAmount(p.Denominator); err != nil || d.Sign() == 0 {
			errs = append(errs, fmt.Errorf("devnet.pairs[%d].denominator 必须为正整数", i))
		}
	}

	switch c.Storage.Settlements.Driver {
	case "memory":
	case "mysql":
		if c.Storage.Settlements.DSN == "" {
			errs = append(errs, errors.New("storage.settlements.dsn 不能为空"))
		}
	default:
		errs = append(errs, fmt.Errorf("不支持的存储驱动: %s", c.Storage.Settlements.Driver))
	}

	switch c.Queue.Driver {
	case "memory":
	case "redis":
		if c.Queue.Redis.Address == "" {
			errs = append(errs, errors.New("queue.redis.address 不能为空"))
		}
	case "rabbitmq":
		if c.Queue.RabbitMQ.URL == "" {
			errs = append(errs, errors.New("queue.rabbitmq.url 不能为空"))
		}
	default:
		errs = append(errs, fmt.Errorf("不支持的队列驱动: %s", c.Queue.Driver))
	}
	return errors.Join(errs...)
}

// ParseAmount 解析十进制或 0x 前缀的十六进制非负整数。
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("数值为空")
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("无法解析数值 %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("数值不能为负: %s", s)
	}
	return v, nil
}
