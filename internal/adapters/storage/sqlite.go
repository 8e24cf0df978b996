package storage

// sqlite.go — persistencia del estado que sobrevive a reinicios.
//
// Tablas:
//   - `forecasts` + `opinions`: histórico append-only de debates. La
//     probabilidad raw nunca se actualiza; outcome se rellena al resolver.
//   - `positions` / `trades`: registro del ledger. Un índice parcial único
//     garantiza a nivel de schema una sola posición OPEN por mercado.
//   - `bankroll`: una única fila; balances como TEXT decimal exacto.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/eeguskiza/Poly-Oracle/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS forecasts (
    id             TEXT PRIMARY KEY,
    market_id      TEXT NOT NULL,
    raw_prob       REAL NOT NULL,
    calibrated_prob REAL NOT NULL,
    calibrated     INTEGER NOT NULL DEFAULT 0,
    confidence     REAL NOT NULL,
    market_price   REAL NOT NULL,
    created_at     DATETIME NOT NULL,
    outcome        TEXT NOT NULL DEFAULT 'UNRESOLVED'
);

CREATE TABLE IF NOT EXISTS opinions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    forecast_id TEXT NOT NULL,
    role        TEXT NOT NULL,
    probability REAL NOT NULL,
    rationale   TEXT,
    round       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    id          TEXT PRIMARY KEY,
    market_id   TEXT NOT NULL,
    side        TEXT NOT NULL,
    stake       REAL NOT NULL,
    entry_price REAL NOT NULL,
    opened_at   DATETIME NOT NULL,
    status      TEXT NOT NULL DEFAULT 'OPEN',
    closed_at   DATETIME,
    pnl         REAL
);

CREATE TABLE IF NOT EXISTS trades (
    id             TEXT PRIMARY KEY,
    position_id    TEXT,
    market_id      TEXT NOT NULL,
    decision_id    TEXT NOT NULL,
    side           TEXT NOT NULL,
    stake          REAL NOT NULL,
    price          REAL NOT NULL,
    mode           TEXT NOT NULL,
    venue_order_id TEXT,
    status         TEXT NOT NULL,
    executed_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS bankroll (
    id           INTEGER PRIMARY KEY CHECK (id = 1),
    balance      TEXT NOT NULL,
    realized_pnl TEXT NOT NULL,
    updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_forecasts_market   ON forecasts(market_id);
CREATE INDEX IF NOT EXISTS idx_forecasts_outcome  ON forecasts(outcome);
CREATE INDEX IF NOT EXISTS idx_opinions_forecast  ON opinions(forecast_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open ON positions(market_id) WHERE status = 'OPEN';
CREATE INDEX IF NOT EXISTS idx_trades_decision    ON trades(decision_id);
CREATE INDEX IF NOT EXISTS idx_trades_executed    ON trades(executed_at DESC);
`

// SQLiteStore implementa ports.Store usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos y aplica el schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveForecast inserta un forecast con todas sus opiniones en una transacción.
func (s *SQLiteStore) SaveForecast(ctx context.Context, f domain.Forecast) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveForecast: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO forecasts (id, market_id, raw_prob, calibrated_prob, calibrated,
		                       confidence, market_price, created_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.MarketID, f.RawProbability, f.CalibratedProbability, boolToInt(f.Calibrated),
		f.Confidence, f.MarketPrice, f.CreatedAt.UTC().Format(time.RFC3339), string(f.Outcome),
	); err != nil {
		return fmt.Errorf("storage.SaveForecast: insert forecast: %w", err)
	}

	for _, op := range f.Opinions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO opinions (forecast_id, role, probability, rationale, round)
			VALUES (?, ?, ?, ?, ?)`,
			f.ID, string(op.Role), op.Probability, op.Rationale, op.Round,
		); err != nil {
			return fmt.Errorf("storage.SaveForecast: insert opinion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveForecast: commit: %w", err)
	}
	return nil
}

// ResolveForecasts rellena el outcome de todos los forecasts sin resolver de
// un mercado. Nunca toca raw_prob.
func (s *SQLiteStore) ResolveForecasts(ctx context.Context, marketID string, outcome domain.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE forecasts SET outcome = ? WHERE market_id = ? AND outcome = 'UNRESOLVED'`,
		string(outcome), marketID)
	if err != nil {
		return fmt.Errorf("storage.ResolveForecasts: %s: %w", marketID, err)
	}
	return nil
}

// ResolvedForecasts devuelve los forecasts con resultado conocido en orden
// temporal ascendente (sin opiniones: la calibración no las necesita).
func (s *SQLiteStore) ResolvedForecasts(ctx context.Context) ([]domain.Forecast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, raw_prob, calibrated_prob, calibrated,
		       confidence, market_price, created_at, outcome
		FROM forecasts
		WHERE outcome IN ('YES', 'NO')
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.ResolvedForecasts: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Forecast
	for rows.Next() {
		f, err := scanForecast(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.ResolvedForecasts: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ForecastCounts devuelve el total de forecasts y cuántos están resueltos.
func (s *SQLiteStore) ForecastCounts(ctx context.Context) (total, resolved int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(CASE WHEN outcome IN ('YES','NO') THEN 1 END) FROM forecasts`,
	).Scan(&total, &resolved)
	if err != nil {
		return 0, 0, fmt.Errorf("storage.ForecastCounts: %w", err)
	}
	return total, resolved, nil
}

// OpenPosition inserta la posición con su trade y el bankroll resultante en
// una transacción: en disco nunca existe una posición abierta con un balance
// sin debitar. El índice parcial único convierte un doble open en error de
// constraint, no en corrupción.
func (s *SQLiteStore) OpenPosition(ctx context.Context, p domain.Position, t domain.Trade, b domain.BankrollState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.OpenPosition: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO positions (id, market_id, side, stake, entry_price, opened_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.MarketID, string(p.Side), p.Stake, p.EntryPrice,
		p.OpenedAt.UTC().Format(time.RFC3339), string(p.Status),
	); err != nil {
		return fmt.Errorf("storage.OpenPosition: insert position %s: %w", p.MarketID, err)
	}
	if err := insertTrade(ctx, tx, t); err != nil {
		return fmt.Errorf("storage.OpenPosition: %w", err)
	}
	if err := upsertBankroll(ctx, tx, b); err != nil {
		return fmt.Errorf("storage.OpenPosition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.OpenPosition: commit: %w", err)
	}
	return nil
}

// ClosePosition marca la posición como cerrada y registra su P&L realizado
// junto con el bankroll resultante, en una transacción.
func (s *SQLiteStore) ClosePosition(ctx context.Context, positionID string, closedAt time.Time, pnl float64, b domain.BankrollState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.ClosePosition: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE positions SET status = 'CLOSED', closed_at = ?, pnl = ? WHERE id = ?`,
		closedAt.UTC().Format(time.RFC3339), pnl, positionID,
	); err != nil {
		return fmt.Errorf("storage.ClosePosition: %s: %w", positionID, err)
	}
	if err := upsertBankroll(ctx, tx, b); err != nil {
		return fmt.Errorf("storage.ClosePosition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.ClosePosition: commit: %w", err)
	}
	return nil
}

// OpenPositions devuelve todas las posiciones OPEN.
func (s *SQLiteStore) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, market_id, side, stake, entry_price, opened_at, status
		FROM positions WHERE status = 'OPEN'`)
	if err != nil {
		return nil, fmt.Errorf("storage.OpenPositions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		var side, status, openedAt string
		if err := rows.Scan(&p.ID, &p.MarketID, &side, &p.Stake, &p.EntryPrice, &openedAt, &status); err != nil {
			return nil, fmt.Errorf("storage.OpenPositions: scan: %w", err)
		}
		p.Side = domain.Side(side)
		p.Status = domain.PositionStatus(status)
		p.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveTrade inserta un trade (append-only).
func (s *SQLiteStore) SaveTrade(ctx context.Context, t domain.Trade) error {
	if err := insertTrade(ctx, s.db, t); err != nil {
		return fmt.Errorf("storage.SaveTrade: %w", err)
	}
	return nil
}

// TradeByDecision busca el trade comprometido para una decisión, si existe.
// Es la consulta del check de idempotencia del gateway: los trades FAILED no
// cuentan, el orden nunca llegó al venue y la decisión puede reintentarse.
func (s *SQLiteStore) TradeByDecision(ctx context.Context, decisionID string) (*domain.Trade, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, position_id, market_id, decision_id, side, stake, price,
		       mode, venue_order_id, status, executed_at
		FROM trades WHERE decision_id = ? AND status != 'FAILED' LIMIT 1`, decisionID)

	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.TradeByDecision: %s: %w", decisionID, err)
	}
	return &t, nil
}

// TradeHistory devuelve los últimos trades, el más reciente primero.
func (s *SQLiteStore) TradeHistory(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, position_id, market_id, decision_id, side, stake, price,
		       mode, venue_order_id, status, executed_at
		FROM trades ORDER BY executed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.TradeHistory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.TradeHistory: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Bankroll devuelve el estado persistido, o nil si nunca se sembró.
func (s *SQLiteStore) Bankroll(ctx context.Context) (*domain.BankrollState, error) {
	var balance, realized string
	err := s.db.QueryRowContext(ctx,
		`SELECT balance, realized_pnl FROM bankroll WHERE id = 1`,
	).Scan(&balance, &realized)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.Bankroll: %w", err)
	}

	b := &domain.BankrollState{}
	if b.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("storage.Bankroll: parse balance %q: %w", balance, err)
	}
	if b.RealizedPnL, err = decimal.NewFromString(realized); err != nil {
		return nil, fmt.Errorf("storage.Bankroll: parse realized %q: %w", realized, err)
	}
	return b, nil
}

// SaveBankroll upserta la única fila de bankroll.
func (s *SQLiteStore) SaveBankroll(ctx context.Context, b domain.BankrollState) error {
	if err := upsertBankroll(ctx, s.db, b); err != nil {
		return fmt.Errorf("storage.SaveBankroll: %w", err)
	}
	return nil
}

// DailyRealizedPnL suma el P&L de las posiciones cerradas en el día UTC dado.
func (s *SQLiteStore) DailyRealizedPnL(ctx context.Context, day time.Time) (float64, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	var pnl sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(pnl) FROM positions
		WHERE status = 'CLOSED' AND closed_at >= ? AND closed_at < ?`,
		start.Format(time.RFC3339), end.Format(time.RFC3339),
	).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("storage.DailyRealizedPnL: %w", err)
	}
	return pnl.Float64, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

type rowScanner interface {
	Scan(dest ...any) error
}

// execer permite reutilizar los inserts tanto con *sql.DB como dentro de una
// transacción.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTrade(ctx context.Context, ex execer, t domain.Trade) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO trades (id, position_id, market_id, decision_id, side, stake,
		                    price, mode, venue_order_id, status, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PositionID, t.MarketID, t.DecisionID, string(t.Side), t.Stake,
		t.Price, string(t.Mode), t.VenueOrderID, string(t.Status),
		t.ExecutedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.ID, err)
	}
	return nil
}

func upsertBankroll(ctx context.Context, ex execer, b domain.BankrollState) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO bankroll (id, balance, realized_pnl, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			balance      = excluded.balance,
			realized_pnl = excluded.realized_pnl,
			updated_at   = excluded.updated_at`,
		b.Balance.String(), b.RealizedPnL.String(), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert bankroll: %w", err)
	}
	return nil
}

func scanForecast(r rowScanner) (domain.Forecast, error) {
	var f domain.Forecast
	var calibrated int
	var createdAt, outcome string
	if err := r.Scan(&f.ID, &f.MarketID, &f.RawProbability, &f.CalibratedProbability,
		&calibrated, &f.Confidence, &f.MarketPrice, &createdAt, &outcome); err != nil {
		return domain.Forecast{}, err
	}
	f.Calibrated = calibrated == 1
	f.Outcome = domain.Outcome(outcome)
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return f, nil
}

func scanTrade(r rowScanner) (domain.Trade, error) {
	var t domain.Trade
	var side, mode, status, executedAt string
	var positionID, venueOrderID sql.NullString
	if err := r.Scan(&t.ID, &positionID, &t.MarketID, &t.DecisionID, &side, &t.Stake,
		&t.Price, &mode, &venueOrderID, &status, &executedAt); err != nil {
		return domain.Trade{}, err
	}
	t.PositionID = positionID.String
	t.VenueOrderID = venueOrderID.String
	t.Side = domain.Side(side)
	t.Mode = domain.Mode(mode)
	t.Status = domain.TradeStatus(status)
	t.ExecutedAt, _ = time.Parse(time.RFC3339, executedAt)
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
