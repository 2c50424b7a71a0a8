package record

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	xerrors "SwapRelay/internal/errors"
	"SwapRelay/internal/ledger"
	"SwapRelay/internal/observability/alerting"
	"SwapRelay/internal/relay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	relayAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	callerAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	tokenA     = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB     = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

func settlement() relay.SettlementRecord {
	return relay.SettlementRecord{
		Caller:       callerAddr,
		InputAsset:   tokenA,
		OutputAsset:  tokenB,
		InputAmount:  big.NewInt(1000),
		GrossOutput:  big.NewInt(500),
		FeeAmount:    big.NewInt(5),
		NetOutput:    big.NewInt(495),
		NativeRefund: big.NewInt(0),
	}
}

type memorySaver struct {
	mu      sync.Mutex
	records []Record
	fail    atomic.Int32
}

func (s *memorySaver) Save(_ context.Context, rec Record) error {
	if s.fail.Load() > 0 {
		s.fail.Add(-1)
		return errors.New("database unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type captureDispatcher struct {
	mu     sync.Mutex
	events []alerting.Event
}

func (c *captureDispatcher) Notify(_ context.Context, event alerting.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func TestFromSettlement(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	rec := FromSettlement("tx-1", relayAddr, settlement(), at)

	require.NotEmpty(t, rec.ID)
	require.Equal(t, "tx-1", rec.TxID)
	require.Equal(t, relayAddr.Hex(), rec.Relay)
	require.Equal(t, "500", rec.GrossOutput)
	require.Equal(t, "495", rec.NetOutput)
	require.Equal(t, "0", rec.InputRefund)
	require.Equal(t, int64(1_700_000_000), rec.CreatedAt)
	require.NoError(t, rec.Validate())

	data, err := Encode(rec)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, rec, decoded)
}

func TestValidateRejectsBadRecords(t *testing.T) {
	rec := FromSettlement("tx", relayAddr, settlement(), time.Now())
	rec.FeeAmount = "-1"
	require.Error(t, rec.Validate())

	rec = FromSettlement("tx", relayAddr, settlement(), time.Now())
	rec.Caller = "nobody"
	require.Error(t, rec.Validate())

	rec.ID = ""
	require.Error(t, rec.Validate())
}

func TestSettledLogHandlerPublishes(t *testing.T) {
	q := NewMemoryQueue(4)
	handler := SettledLogHandler(q)

	require.NoError(t, handler(context.Background(), "tx-9", ledger.Log{Address: relayAddr, Name: "Other"}))
	require.NoError(t, handler(context.Background(), "tx-9", ledger.Log{Address: relayAddr, Name: relay.SettledEvent, Data: settlement()}))
	err := handler(context.Background(), "tx-9", ledger.Log{Address: relayAddr, Name: relay.SettledEvent, Data: "garbage"})
	require.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))

	require.NoError(t, q.Close())
	var got []Record
	for rec := range q.ch {
		got = append(got, rec)
	}
	require.Len(t, got, 1)
	require.Equal(t, "tx-9", got[0].TxID)
	require.Equal(t, relayAddr.Hex(), got[0].Relay)
}

func TestMemoryQueueRejectsAfterClose(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	require.Error(t, q.Publish(context.Background(), Record{ID: "x"}))
}

func TestMemoryQueueCloseUnblocksPublisher(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Publish(context.Background(), Record{ID: "first"}))

	published := make(chan error, 1)
	go func() {
		published <- q.Publish(context.Background(), Record{ID: "second"})
	}()

	closed := make(chan struct{})
	go func() {
		// 给第二次 Publish 留出时间阻塞在已满的 channel 上。
		time.Sleep(20 * time.Millisecond)
		_ = q.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a publisher waiting on a full queue")
	}
	select {
	case err := <-published:
		require.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("publisher was not released by Close")
	}
}

func TestMemoryQueueDrainsAfterClose(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, Record{ID: "a"}))
	require.NoError(t, q.Publish(ctx, Record{ID: "b"}))
	require.NoError(t, q.Close())

	var mu sync.Mutex
	var seen []string
	err := q.Consume(ctx, 2, func(_ context.Context, rec Record) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, rec.ID)
		if rec.ID == "b" {
			return errors.New("save failed")
		}
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, seen)
}

type recordingAck struct {
	acked   int
	nacked  int
	requeue []bool
}

func (a *recordingAck) Ack(uint64, bool) error { a.acked++; return nil }

func (a *recordingAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *recordingAck) Reject(uint64, bool) error { return nil }

func TestRabbitMQDeliveryRequeuesOnce(t *testing.T) {
	body, err := Encode(Record{ID: "rec-1", TxID: "tx-1"})
	require.NoError(t, err)
	failing := func(context.Context, Record) error { return errors.New("save failed") }
	q := &RabbitMQQueue{}

	ack := &recordingAck{}
	q.deliver(context.Background(), amqp.Delivery{Acknowledger: ack, Body: body}, failing)
	q.deliver(context.Background(), amqp.Delivery{Acknowledger: ack, Body: body, Redelivered: true}, failing)
	require.Equal(t, 2, ack.nacked)
	require.Equal(t, []bool{true, false}, ack.requeue)

	ok := &recordingAck{}
	q.deliver(context.Background(), amqp.Delivery{Acknowledger: ok, Body: body}, func(context.Context, Record) error { return nil })
	require.Equal(t, 1, ok.acked)
	require.Zero(t, ok.nacked)
}

func TestIndexerPersistsConcurrently(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q := NewMemoryQueue(256)
	saver := &memorySaver{}
	indexer := NewIndexer(saver, q, WithWorkerCount(4))

	done := make(chan error, 1)
	go func() { done <- indexer.Start(ctx) }()

	const total = 100
	for i := 0; i < total; i++ {
		require.NoError(t, q.Publish(ctx, FromSettlement("tx", relayAddr, settlement(), time.Now())))
	}
	require.Eventually(t, func() bool { return saver.count() == total }, 5*time.Second, 10*time.Millisecond)

	cancel()
	err := <-done
	require.True(t, err == nil || errors.Is(err, context.Canceled), "unexpected error %v", err)
}

func TestIndexerAlertsOnStorageFailure(t *testing.T) {
	saver := &memorySaver{}
	saver.fail.Store(1)
	alerts := &captureDispatcher{}
	indexer := NewIndexer(saver, NewMemoryQueue(1), WithAlertDispatcher(alerts))

	rec := FromSettlement("tx-fail", relayAddr, settlement(), time.Now())
	err := indexer.handle(context.Background(), rec)
	require.Equal(t, xerrors.CodeStorageFailure, xerrors.CodeOf(err))
	require.Len(t, alerts.events, 1)
	require.Equal(t, "tx-fail", alerts.events[0].TxID)

	require.NoError(t, indexer.handle(context.Background(), rec))
	require.Equal(t, 1, saver.count())

	// 无效记录被跳过而不是重试。
	require.NoError(t, indexer.handle(context.Background(), Record{ID: "bad"}))
	require.Equal(t, 1, saver.count())
}

func TestIndexerRequiresDependencies(t *testing.T) {
	err := NewIndexer(nil, nil).Start(context.Background())
	require.Equal(t, xerrors.CodeInitializationFailure, xerrors.CodeOf(err))
}
