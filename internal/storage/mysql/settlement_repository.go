package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"SwapRelay/internal/record"
	"SwapRelay/pkg/logger"
)

// memoryLimit 是文件仓库在内存中保留的最近记录数。
const memoryLimit = 512

// SettlementRepository 抽象结算记录的持久化接口。
type SettlementRepository interface {
	Save(ctx context.Context, rec record.Record) error
	ListLatest(ctx context.Context, limit int) ([]record.Record, error)
	Close() error
}

// MemorySettlementRepository 把记录以 JSON 行追加到本地文件，并在内存中保留最近的记录。
// ids 覆盖文件中的全部记录，去重不受内存窗口限制。
type MemorySettlementRepository struct {
	mu       sync.RWMutex
	dataFile string
	keep     int
	records  []record.Record
	ids      map[string]struct{}
}

// NewMemorySettlementRepository 创建文件仓库，并从已有的日志中恢复记录。
func NewMemorySettlementRepository(dataDir string) (*MemorySettlementRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	repo := &MemorySettlementRepository{
		dataFile: filepath.Join(dataDir, "settlements.log"),
		keep:     memoryLimit,
		ids:      make(map[string]struct{}),
	}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录结算。重复的记录 ID 会被忽略。
func (m *MemorySettlementRepository) Save(_ context.Context, rec record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.ids[rec.ID]; dup {
		return nil
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化结算记录失败: %w", err)
	}
	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开结算日志失败: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入结算日志失败: %w", err)
	}

	m.insert(rec)
	return nil
}

// ListLatest 返回最近的结算记录，按时间倒序排列。
func (m *MemorySettlementRepository) ListLatest(_ context.Context, limit int) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	results := make([]record.Record, limit)
	copy(results, m.records[:limit])
	return results, nil
}

// Close 实现 SettlementRepository，文件在每次写入后即关闭。
func (m *MemorySettlementRepository) Close() error { return nil }

func (m *MemorySettlementRepository) insert(rec record.Record) {
	m.ids[rec.ID] = struct{}{}
	idx := sort.Search(len(m.records), func(i int) bool {
		return m.records[i].CreatedAt <= rec.CreatedAt
	})
	m.records = append(m.records, record.Record{})
	copy(m.records[idx+1:], m.records[idx:])
	m.records[idx] = rec
	if len(m.records) > m.keep {
		m.records = m.records[:m.keep]
	}
}

func (m *MemorySettlementRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取结算日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	skipped := 0
	for scanner.Scan() {
		var rec record.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			skipped++
			continue
		}
		if _, dup := m.ids[rec.ID]; dup {
			continue
		}
		m.insert(rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析结算日志失败: %w", err)
	}
	if skipped > 0 {
		logger.L().Warn("结算日志中存在无法解析的行", "file", m.dataFile, "skipped", skipped)
	}
	return nil
}

// SQLSettlementRepository 使用 MySQL 存储结算记录。
type SQLSettlementRepository struct {
	db *sql.DB
}

// NewSQLSettlementRepository 创建连接池并执行迁移。
func NewSQLSettlementRepository(ctx context.Context, cfg Config) (*SQLSettlementRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	repo := &SQLSettlementRepository{db: db}
	ran, err := newMigrator(db).run(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(ran) > 0 {
		logger.L().Info("已执行数据库迁移", "versions", ran)
	}
	return repo, nil
}

const insertSettlementSQL = `INSERT INTO settlements
    (id, tx_id, relay, caller, input_asset, output_asset, input_amount, gross_output, fee_amount, net_output, native_refund, input_refund, zero_output, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE id = id`

const selectLatestSettlementsSQL = `SELECT id, tx_id, relay, caller, input_asset, output_asset, input_amount, gross_output, fee_amount, net_output, native_refund, input_refund, zero_output, created_at
    FROM settlements ORDER BY created_at DESC, id DESC LIMIT ?`

// Save 将结算记录写入 MySQL，重复投递的记录被忽略。
func (s *SQLSettlementRepository) Save(ctx context.Context, rec record.Record) error {
	if _, err := s.db.ExecContext(ctx, insertSettlementSQL,
		rec.ID,
		rec.TxID,
		rec.Relay,
		rec.Caller,
		rec.InputAsset,
		rec.OutputAsset,
		rec.InputAmount,
		rec.GrossOutput,
		rec.FeeAmount,
		rec.NetOutput,
		rec.NativeRefund,
		rec.InputRefund,
		rec.ZeroOutput,
		rec.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条结算记录。
func (s *SQLSettlementRepository) ListLatest(ctx context.Context, limit int) ([]record.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectLatestSettlementsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("查询结算记录失败: %w", err)
	}
	defer rows.Close()

	var records []record.Record
	for rows.Next() {
		var rec record.Record
		if err := rows.Scan(&rec.ID, &rec.TxID, &rec.Relay, &rec.Caller, &rec.InputAsset, &rec.OutputAsset,
			&rec.InputAmount, &rec.GrossOutput, &rec.FeeAmount, &rec.NetOutput, &rec.NativeRefund, &rec.InputRefund,
			&rec.ZeroOutput, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("解析结算记录失败: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历结算记录失败: %w", err)
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLSettlementRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ SettlementRepository = (*MemorySettlementRepository)(nil)
	_ SettlementRepository = (*SQLSettlementRepository)(nil)
)
