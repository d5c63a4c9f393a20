package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const (
	keyTradingPair = "trading_pair"
	keyBuySlippage = "buy_slippage_pct"
	keySellSlip    = "sell_slippage_pct"
	keyWaitSeconds = "wait_seconds"
	keyDataWindows = "data_windows"
)

// SQLiteStore persists runtime settings in a single-table SQLite database.
// WAL mode plus per-setter transactions give the atomicity the two
// concurrent tasks rely on: a reader never observes a half-written value.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the settings database and seeds
// any missing keys from defaults.
func OpenSQLiteStore(dbPath string, defaults Defaults) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping settings database: %w", err)
	}

	// WAL for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create settings schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.seed(defaults); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) seed(defaults Defaults) error {
	windows, err := json.Marshal(defaults.DataWindows)
	if err != nil {
		return fmt.Errorf("failed to marshal default data windows: %w", err)
	}

	seeds := map[string]string{
		keyTradingPair: defaults.TradingPair,
		keyBuySlippage: defaults.Slippage.BuyPct.String(),
		keySellSlip:    defaults.Slippage.SellPct.String(),
		keyWaitSeconds: strconv.Itoa(defaults.WaitSeconds),
		keyDataWindows: string(windows),
	}

	now := time.Now().UnixNano()
	for key, value := range seeds {
		_, err := s.db.Exec(
			`INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
			key, value, now,
		)
		if err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", key, err)
		}
	}
	return nil
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// setAll writes one logical setting, which may span several keys, in a single
// transaction.
func (s *SQLiteStore) setAll(ctx context.Context, kv map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UnixNano()
	for key, value := range kv {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`,
			key, value, now,
		)
		if err != nil {
			return fmt.Errorf("failed to write setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) TradingPair(ctx context.Context) (string, error) {
	return s.get(ctx, keyTradingPair)
}

func (s *SQLiteStore) SetTradingPair(ctx context.Context, pair string) error {
	if pair == "" {
		return fmt.Errorf("trading pair must not be empty")
	}
	return s.setAll(ctx, map[string]string{keyTradingPair: pair})
}

func (s *SQLiteStore) GetSlippage(ctx context.Context) (Slippage, error) {
	buyRaw, err := s.get(ctx, keyBuySlippage)
	if err != nil {
		return Slippage{}, err
	}
	sellRaw, err := s.get(ctx, keySellSlip)
	if err != nil {
		return Slippage{}, err
	}

	buy, err := decimal.NewFromString(buyRaw)
	if err != nil {
		return Slippage{}, fmt.Errorf("corrupt buy slippage %q: %w", buyRaw, err)
	}
	sell, err := decimal.NewFromString(sellRaw)
	if err != nil {
		return Slippage{}, fmt.Errorf("corrupt sell slippage %q: %w", sellRaw, err)
	}
	return Slippage{BuyPct: buy, SellPct: sell}, nil
}

func (s *SQLiteStore) SetSlippage(ctx context.Context, sl Slippage) error {
	if sl.BuyPct.IsNegative() || sl.SellPct.IsNegative() {
		return fmt.Errorf("slippage percentages must be non-negative")
	}
	return s.setAll(ctx, map[string]string{
		keyBuySlippage: sl.BuyPct.String(),
		keySellSlip:    sl.SellPct.String(),
	})
}

func (s *SQLiteStore) WaitSeconds(ctx context.Context) (int, error) {
	raw, err := s.get(ctx, keyWaitSeconds)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt wait seconds %q: %w", raw, err)
	}
	return seconds, nil
}

func (s *SQLiteStore) SetWaitSeconds(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("wait seconds must be non-negative")
	}
	return s.setAll(ctx, map[string]string{keyWaitSeconds: strconv.Itoa(seconds)})
}

func (s *SQLiteStore) DataWindows(ctx context.Context) (map[string]int, error) {
	raw, err := s.get(ctx, keyDataWindows)
	if err != nil {
		return nil, err
	}
	var windows map[string]int
	if err := json.Unmarshal([]byte(raw), &windows); err != nil {
		return nil, fmt.Errorf("corrupt data windows %q: %w", raw, err)
	}
	return windows, nil
}

func (s *SQLiteStore) SetDataWindows(ctx context.Context, windows map[string]int) error {
	for bar, rows := range windows {
		if rows < 0 {
			return fmt.Errorf("window for %s must be non-negative", bar)
		}
	}
	data, err := json.Marshal(windows)
	if err != nil {
		return fmt.Errorf("failed to marshal data windows: %w", err)
	}
	return s.setAll(ctx, map[string]string{keyDataWindows: string(data)})
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
