package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"SwapRelay/internal/chain"
	xerrors "SwapRelay/internal/errors"
	"SwapRelay/internal/observability/metrics"
	"SwapRelay/internal/record"
	"SwapRelay/internal/relay"
	"SwapRelay/internal/route"
	"SwapRelay/internal/web3"
	"SwapRelay/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
	maxBodyBytes     = 1 << 20
)

// SettlementLister 提供结算记录查询。
type SettlementLister interface {
	ListLatest(ctx context.Context, limit int) ([]record.Record, error)
}

// ChainSource 提供已配置链的客户端与部署信息，通常是 provider.Registry。
type ChainSource interface {
	Client(name string) (web3.Client, bool)
	Definition(name string) (web3.ChainDefinition, bool)
}

// Server 负责暴露 REST 接口，供外部提交兑换并查询结算。
type Server struct {
	addr        string
	swaps       *chain.SwapService
	settlements SettlementLister
	chains      ChainSource
	decoder     route.Decoder
	logger      *slog.Logger
}

// Option 定制 Server。
type Option func(*Server)

// WithChains 允许 preflight 通过 ?chain= 针对真实链上的 relay 部署执行检查。
func WithChains(chains ChainSource) Option {
	return func(s *Server) {
		s.chains = chains
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, swaps *chain.SwapService, settlements SettlementLister, opts ...Option) *Server {
	s := &Server{
		addr:        addr,
		swaps:       swaps,
		settlements: settlements,
		decoder:     route.MustOneInchV5(),
		logger:      logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回挂载了全部路由的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/swaps", s.instrument("swaps", s.handleSwap))
	mux.HandleFunc("/api/v1/preflight", s.instrument("preflight", s.handlePreflight))
	mux.HandleFunc("/api/v1/settlements", s.instrument("settlements", s.handleSettlements))
	mux.HandleFunc("/api/v1/relay", s.instrument("relay", s.handleRelay))
	mux.HandleFunc("/api/v1/balances", s.instrument("balances", s.handleBalance))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("API 服务已启动", slog.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// SwapRequest 是提交兑换的请求体。value 为十进制字符串，payload 为 0x 十六进制。
type SwapRequest struct {
	Caller  string `json:"caller"`
	Value   string `json:"value"`
	Payload string `json:"payload"`
}

// SwapResponse 是兑换成功后的响应。
type SwapResponse struct {
	TxID         string `json:"tx_id"`
	GrossOutput  string `json:"gross_output"`
	FeeAmount    string `json:"fee_amount"`
	NetOutput    string `json:"net_output"`
	NativeRefund string `json:"native_refund"`
	InputRefund  string `json:"input_refund"`
}

// RelayInfo 描述中继的固定配置。
type RelayInfo struct {
	Address        string `json:"address"`
	Router         string `json:"router"`
	FeeRecipient   string `json:"fee_recipient"`
	FeeBps         uint64 `json:"fee_bps"`
	NativeSentinel string `json:"native_sentinel"`
	State          string `json:"state"`
}

// BalanceResponse 是余额查询的响应。
type BalanceResponse struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

// ErrorResponse 是所有失败响应的结构。
type ErrorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	call, err := s.decodeCall(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	receipt, err := s.swaps.Swap(r.Context(), call)
	if err != nil {
		writeError(w, err)
		return
	}
	res := receipt.Result
	writeJSON(w, http.StatusOK, SwapResponse{
		TxID:         receipt.TxID,
		GrossOutput:  res.GrossOutput.String(),
		FeeAmount:    res.FeeAmount.String(),
		NetOutput:    res.NetOutput.String(),
		NativeRefund: res.NativeRefund.String(),
		InputRefund:  res.InputRefund.String(),
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	call, err := s.decodeCall(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	desc, err := s.decoder.Decode(call.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	target, err := s.preflightTarget(r.URL.Query().Get("chain"))
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := web3.Preflight(r.Context(), target.reader, web3.PreflightRequest{
		Relay:          target.relay,
		Caller:         call.Caller,
		NativeSentinel: target.sentinel,
		Value:          call.Value,
		Route:          desc,
	})
	if err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeChainFailure, err, "preflight failed",
			xerrors.WithMetadata("chain", target.name)))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type preflightTarget struct {
	name     string
	reader   web3.Reader
	relay    common.Address
	sentinel common.Address
}

// preflightTarget 为空时返回本地账本，否则返回配置中的链及其 relay 部署。
func (s *Server) preflightTarget(name string) (preflightTarget, error) {
	rl := s.swaps.Relay()
	if name == "" {
		return preflightTarget{
			name:     "devnet",
			reader:   s.swaps.Reader(),
			relay:    rl.Address(),
			sentinel: rl.Settings().NativeSentinel(),
		}, nil
	}
	if s.chains == nil {
		return preflightTarget{}, xerrors.New(xerrors.CodeNotFound, "no chains are configured",
			xerrors.WithMetadata("chain", name))
	}
	client, ok := s.chains.Client(name)
	if !ok {
		return preflightTarget{}, xerrors.New(xerrors.CodeNotFound, "unknown chain "+name,
			xerrors.WithMetadata("chain", name))
	}
	def, _ := s.chains.Definition(name)
	if !common.IsHexAddress(def.Relay) {
		return preflightTarget{}, xerrors.New(xerrors.CodeInvalidArgument, "chain "+name+" has no relay deployment",
			xerrors.WithMetadata("chain", name))
	}
	sentinel := rl.Settings().NativeSentinel()
	if common.IsHexAddress(def.NativeSentinel) {
		sentinel = common.HexToAddress(def.NativeSentinel)
	}
	return preflightTarget{
		name:     name,
		reader:   client,
		relay:    common.HexToAddress(def.Relay),
		sentinel: sentinel,
	}, nil
}

func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.settlements == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "结算存储未初始化"))
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "limit 必须为正整数"))
			return
		}
		limit = min(parsed, maxListLimit)
	}
	list, err := s.settlements.ListLatest(r.Context(), limit)
	if err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeStorageFailure, err, "list settlements"))
		return
	}
	if list == nil {
		list = []record.Record{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	rl := s.swaps.Relay()
	settings := rl.Settings()
	writeJSON(w, http.StatusOK, RelayInfo{
		Address:        rl.Address().Hex(),
		Router:         settings.Router().Hex(),
		FeeRecipient:   settings.FeeRecipient().Hex(),
		FeeBps:         settings.FeeBps(),
		NativeSentinel: settings.NativeSentinel().Hex(),
		State:          rl.State().String(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	holder := query.Get("address")
	if !common.IsHexAddress(holder) {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "address 不是合法地址"))
		return
	}
	asset := s.swaps.Relay().Settings().NativeSentinel()
	if raw := query.Get("asset"); raw != "" {
		if !common.IsHexAddress(raw) {
			writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "asset 不是合法地址"))
			return
		}
		asset = common.HexToAddress(raw)
	}
	addr := common.HexToAddress(holder)
	writeJSON(w, http.StatusOK, BalanceResponse{
		Address: addr.Hex(),
		Asset:   asset.Hex(),
		Balance: s.swaps.Balance(addr, asset).String(),
	})
}

func (s *Server) decodeCall(w http.ResponseWriter, r *http.Request) (relay.Call, error) {
	var req SwapRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return relay.Call{}, xerrors.New(xerrors.CodeInvalidArgument, "请求体解析失败")
	}
	if !common.IsHexAddress(req.Caller) {
		return relay.Call{}, xerrors.New(xerrors.CodeInvalidArgument, "caller 不是合法地址")
	}
	value := new(big.Int)
	if v := strings.TrimSpace(req.Value); v != "" {
		if _, ok := value.SetString(v, 10); !ok || value.Sign() < 0 {
			return relay.Call{}, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("value 不是非负十进制整数: %q", req.Value))
		}
	}
	payload, err := hexutil.Decode(req.Payload)
	if err != nil {
		return relay.Call{}, xerrors.New(xerrors.CodeInvalidArgument, "payload 必须是 0x 开头的十六进制")
	}
	return relay.Call{Caller: common.HexToAddress(req.Caller), Value: value, Payload: payload}, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Code: string(xerrors.CodeOf(err)), Message: err.Error()}
	if e, ok := xerrors.From(err); ok {
		resp.Metadata = e.Metadata()
	}
	writeJSON(w, xerrors.HTTPStatusOf(err), resp)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument 记录每个接口的请求次数与耗时。
func (s *Server) instrument(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.ObserveHTTPRequest(name, r.Method, rec.status, time.Since(started))
	}
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
