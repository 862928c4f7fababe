package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// GroupRepository implements domain.GroupRepository using PostgreSQL
type GroupRepository struct {
	pool *pgxpool.Pool
}

// NewGroupRepository creates a new GroupRepository
func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

const selectGroupSQL = `SELECT id, participants, created_at, last_accessed FROM expense_groups WHERE id = $1`

// GetByID retrieves a group with all its expenses
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	group, err := scanGroup(r.pool.QueryRow(ctx, selectGroupSQL, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	if err := r.loadExpenses(ctx, r.pool, group); err != nil {
		return nil, err
	}
	return group, nil
}

// GetOrCreate retrieves a group, creating an empty one if needed, and stamps its access time
func (r *GroupRepository) GetOrCreate(ctx context.Context, id string, accessedAt time.Time) (*domain.Group, error) {
	group, err := scanGroup(r.pool.QueryRow(ctx,
		`INSERT INTO expense_groups (id, participants, created_at, last_accessed)
		 VALUES ($1, '[]'::jsonb, $2, $2)
		 ON CONFLICT (id) DO UPDATE SET last_accessed = EXCLUDED.last_accessed
		 RETURNING id, participants, created_at, last_accessed`,
		id, accessedAt,
	))
	if err != nil {
		return nil, err
	}
	if err := r.loadExpenses(ctx, r.pool, group); err != nil {
		return nil, err
	}
	return group, nil
}

// ReplaceContents atomically swaps the participants and all expenses of a group
func (r *GroupRepository) ReplaceContents(ctx context.Context, id string, participants []string, expenses []domain.Expense, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// 1. Upsert the group row
	_, err = tx.Exec(ctx,
		`INSERT INTO expense_groups (id, participants, created_at, last_accessed)
		 VALUES ($1, $2, $3, $3)
		 ON CONFLICT (id) DO UPDATE SET participants = EXCLUDED.participants, last_accessed = EXCLUDED.last_accessed`,
		id, participants, at,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group: %w", err)
	}

	// 2. Drop old expenses (payers and splits cascade)
	if _, err := tx.Exec(ctx, `DELETE FROM expenses WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear expenses: %w", err)
	}

	// 3. Insert expenses, then their legs in one batch
	batch := &pgx.Batch{}
	for i, exp := range expenses {
		createdAt := exp.CreatedAt
		if createdAt.IsZero() {
			createdAt = at
		}

		var expenseID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO expenses (group_id, position, description, display_currency, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			id, i, exp.Description, exp.DisplayCurrency, createdAt,
		).Scan(&expenseID)
		if err != nil {
			return fmt.Errorf("failed to insert expense %d: %w", i, err)
		}

		queueLegs(batch, insertPayerSQL, expenseID, exp.Payers)
		queueLegs(batch, insertSplitSQL, expenseID, exp.Splits)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert expense legs: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteInactiveSince removes groups last accessed before cutoff
func (r *GroupRepository) DeleteInactiveSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `DELETE FROM expense_groups WHERE last_accessed < $1 RETURNING id`, cutoff)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Ping checks database connectivity
func (r *GroupRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const (
	insertPayerSQL = `INSERT INTO expense_payers (expense_id, position, person, amount, currency) VALUES ($1, $2, $3, $4::numeric, $5)`
	insertSplitSQL = `INSERT INTO expense_splits (expense_id, position, person, amount, currency) VALUES ($1, $2, $3, $4::numeric, $5)`

	selectPayersSQL = `SELECT l.expense_id, l.person, l.amount::text, l.currency
		FROM expense_payers l JOIN expenses e ON e.id = l.expense_id
		WHERE e.group_id = $1 ORDER BY l.expense_id, l.position`
	selectSplitsSQL = `SELECT l.expense_id, l.person, l.amount::text, l.currency
		FROM expense_splits l JOIN expenses e ON e.id = l.expense_id
		WHERE e.group_id = $1 ORDER BY l.expense_id, l.position`
)

func queueLegs(batch *pgx.Batch, query string, expenseID int64, legs []domain.MoneyLeg) {
	for j, leg := range legs {
		batch.Queue(query, expenseID, j, leg.Person, leg.Amount.String(), leg.Currency)
	}
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *GroupRepository) loadExpenses(ctx context.Context, q querier, group *domain.Group) error {
	rows, err := q.Query(ctx,
		`SELECT id, description, display_currency, created_at
		 FROM expenses WHERE group_id = $1 ORDER BY position`,
		group.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0)
	index := make(map[int64]int)
	for rows.Next() {
		exp := domain.Expense{Payers: []domain.MoneyLeg{}, Splits: []domain.MoneyLeg{}}
		if err := rows.Scan(&exp.ID, &exp.Description, &exp.DisplayCurrency, &exp.CreatedAt); err != nil {
			return err
		}
		index[exp.ID] = len(expenses)
		expenses = append(expenses, exp)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(expenses) > 0 {
		err := loadLegs(ctx, q, selectPayersSQL, group.ID, func(expenseID int64, leg domain.MoneyLeg) {
			if i, ok := index[expenseID]; ok {
				expenses[i].Payers = append(expenses[i].Payers, leg)
			}
		})
		if err != nil {
			return err
		}
		err = loadLegs(ctx, q, selectSplitsSQL, group.ID, func(expenseID int64, leg domain.MoneyLeg) {
			if i, ok := index[expenseID]; ok {
				expenses[i].Splits = append(expenses[i].Splits, leg)
			}
		})
		if err != nil {
			return err
		}
	}

	group.Expenses = expenses
	return nil
}

func loadLegs(ctx context.Context, q querier, query, groupID string, add func(int64, domain.MoneyLeg)) error {
	rows, err := q.Query(ctx, query, groupID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			expenseID int64
			leg       domain.MoneyLeg
			amount    string
		)
		if err := rows.Scan(&expenseID, &leg.Person, &amount, &leg.Currency); err != nil {
			return err
		}
		leg.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("invalid stored amount %q: %w", amount, err)
		}
		add(expenseID, leg)
	}
	return rows.Err()
}

func scanGroup(row pgx.Row) (*domain.Group, error) {
	var g domain.Group
	if err := row.Scan(&g.ID, &g.Participants, &g.CreatedAt, &g.LastAccessed); err != nil {
		return nil, err
	}
	if g.Participants == nil {
		g.Participants = []string{}
	}
	return &g, nil
}
