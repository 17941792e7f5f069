package database

import (
	"context"
	"database/sql"
	"errors"

	"insightstox/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

const holdingColumns = `email, symbol, current_holding, avg_price, spended_amount, realized_profit, last_updated`

func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetHolding returns nil when the user has never traded symbol.
func (r *Repo) GetHolding(ctx context.Context, email, symbol string) (*models.Holding, error) {
	var h models.Holding
	err := r.db.GetContext(ctx, &h, `SELECT `+holdingColumns+` FROM stock_summary WHERE email = $1 AND symbol = $2`, email, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *Repo) ListHoldings(ctx context.Context, email string) ([]models.Holding, error) {
	res := []models.Holding{}
	err := r.db.SelectContext(ctx, &res, `SELECT `+holdingColumns+` FROM stock_summary WHERE email = $1 ORDER BY symbol ASC`, email)
	return res, err
}

func (r *Repo) ListHoldingsWithNames(ctx context.Context, email string) ([]models.HoldingView, error) {
	res := []models.HoldingView{}
	err := r.db.SelectContext(ctx, &res, `SELECT ss.symbol, s.short_name, s.long_name, ss.current_holding, ss.spended_amount, ss.realized_profit
		FROM stock_summary AS ss JOIN stocks AS s ON ss.symbol = s.symbol
		WHERE ss.email = $1 ORDER BY s.short_name ASC`, email)
	return res, err
}

func (r *Repo) ListTransactions(ctx context.Context, email string) ([]models.TransactionView, error) {
	res := []models.TransactionView{}
	err := r.db.SelectContext(ctx, &res, `SELECT ut.symbol, s.short_name, s.long_name, ut.transaction_type, ut.quantity, ut.price, ut.transaction_date
		FROM user_transactions AS ut JOIN stocks AS s ON ut.symbol = s.symbol
		WHERE ut.email = $1 ORDER BY ut.transaction_date DESC`, email)
	return res, err
}

// GetInstrument returns nil when the symbol has no stocks row yet.
func (r *Repo) GetInstrument(ctx context.Context, symbol string) (*models.Instrument, error) {
	var in models.Instrument
	err := r.db.GetContext(ctx, &in, `SELECT symbol, short_name, long_name, sector, currency, quote_type, market, exchange, created_at FROM stocks WHERE symbol = $1`, symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// InsertInstrument is a no-op when another request registered the symbol first.
func (r *Repo) InsertInstrument(ctx context.Context, in models.Instrument) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO stocks (symbol, short_name, long_name, sector, currency, quote_type, market, exchange, created_at)
		VALUES (:symbol, :short_name, :long_name, :sector, :currency, :quote_type, :market, :exchange, :created_at)
		ON CONFLICT (symbol) DO NOTHING`, in)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		r.log.Debugf("instrument %s already registered", in.Symbol)
		return nil
	}
	return err
}

const ledgerQuery = `SELECT id, email, symbol, quantity, price, transaction_type, transaction_date
	FROM user_transactions WHERE email = $1 AND symbol = $2 ORDER BY transaction_date ASC, created_at ASC`

// ListLedger returns the entries of one position in posting order.
func (r *Repo) ListLedger(ctx context.Context, email, symbol string) ([]models.LedgerEntry, error) {
	res := []models.LedgerEntry{}
	err := r.db.SelectContext(ctx, &res, ledgerQuery, email, symbol)
	return res, err
}

// ListLedgerOwners lists the positions with ledger rows, optionally for a
// single user.
func (r *Repo) ListLedgerOwners(ctx context.Context, email string) ([]LedgerOwner, error) {
	res := []LedgerOwner{}
	q := `SELECT DISTINCT email, symbol FROM user_transactions`
	var err error
	if email != "" {
		err = r.db.SelectContext(ctx, &res, q+` WHERE email = $1 ORDER BY email, symbol`, email)
	} else {
		err = r.db.SelectContext(ctx, &res, q+` ORDER BY email, symbol`)
	}
	return res, err
}

// Atomically runs fn inside one SQL transaction. Any error from fn rolls
// the whole unit back.
func (r *Repo) Atomically(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Errorf("rollback failed: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) LockHolding(ctx context.Context, email, symbol string) (models.Holding, error) {
	if _, err := t.tx.ExecContext(ctx, `INSERT INTO stock_summary (email, symbol, current_holding, avg_price, spended_amount, realized_profit, last_updated)
		VALUES ($1, $2, 0, 0, 0, 0, now()) ON CONFLICT (email, symbol) DO NOTHING`, email, symbol); err != nil {
		return models.Holding{}, err
	}
	var h models.Holding
	err := t.tx.GetContext(ctx, &h, `SELECT `+holdingColumns+` FROM stock_summary WHERE email = $1 AND symbol = $2 FOR UPDATE`, email, symbol)
	return h, err
}

func (t *sqlTx) InsertLedgerEntry(ctx context.Context, e models.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO user_transactions (id, email, symbol, quantity, price, transaction_type, transaction_date)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7)`,
		e.ID, e.Email, e.Symbol, e.Quantity.String(), e.Price.String(), string(e.TransactionType), e.TransactionDate)
	return err
}

func (t *sqlTx) SaveHolding(ctx context.Context, h models.Holding) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO stock_summary (email, symbol, current_holding, avg_price, spended_amount, realized_profit, last_updated)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7)
		ON CONFLICT (email, symbol) DO UPDATE SET current_holding = EXCLUDED.current_holding, avg_price = EXCLUDED.avg_price,
		spended_amount = EXCLUDED.spended_amount, realized_profit = EXCLUDED.realized_profit, last_updated = EXCLUDED.last_updated`,
		h.Email, h.Symbol, h.CurrentHolding.String(), h.AvgPrice.String(), h.SpendedAmount.String(), h.RealizedProfit.String(), h.LastUpdated)
	return err
}

func (t *sqlTx) ListLedger(ctx context.Context, email, symbol string) ([]models.LedgerEntry, error) {
	res := []models.LedgerEntry{}
	err := t.tx.SelectContext(ctx, &res, ledgerQuery, email, symbol)
	return res, err
}
