package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const orderColumns = `id, total_amount, total_items, status, paid, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// InsertAggregate пишет заказ и позиции в одной транзакции и перед commit сверяет
// записанные строки с запрошенными.
func (r *orderRepository) InsertAggregate(ctx context.Context, order domain.Order) (stored domain.Order, err error) {
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrAggregateMismatch, errors.Join(errs...))
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		order.ID, order.TotalAmount, order.TotalItems, string(order.Status),
		order.Paid, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, domain.ErrOrderAlreadyExists
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for position, line := range order.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, product_id, quantity, price, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			line.ID, order.ID, line.ProductID, line.Quantity, line.Price, position, line.CreatedAt,
		); err != nil {
			return domain.Order{}, fmt.Errorf("insert order line: %w", err)
		}
	}

	var (
		linesCount int
		itemsSum   int64
		amountSum  decimal.Decimal
	)
	if err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(quantity), 0), COALESCE(SUM(price * quantity), 0)
		FROM order_lines
		WHERE order_id = $1
	`, order.ID).Scan(&linesCount, &itemsSum, &amountSum); err != nil {
		return domain.Order{}, fmt.Errorf("verify order lines: %w", err)
	}
	if linesCount != len(order.Lines) || itemsSum != int64(order.TotalItems) || !amountSum.Equal(order.TotalAmount) {
		err = fmt.Errorf("%w: lines %d/%d, items %d/%d, amount %s/%s",
			domain.ErrAggregateMismatch, linesCount, len(order.Lines), itemsSum, order.TotalItems,
			amountSum, order.TotalAmount)
		return domain.Order{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit insert order: %w", err)
	}

	stored = order.Clone()
	for i := range stored.Lines {
		stored.Lines[i].OrderID = stored.ID
		stored.Lines[i].Name = ""
	}
	return stored, nil
}

// Count возвращает число заказов, подходящих под фильтр.
func (r *orderRepository) Count(ctx context.Context, filter domain.OrderFilter) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	where, args := filterClause(filter, 1)
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}

// ListPage возвращает страницу заказов без позиций в порядке создания.
func (r *orderRepository) ListPage(ctx context.Context, skip, take int, filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	where, args := filterClause(filter, 1)
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at ASC, id ASC`
	query += fmt.Sprintf(" OFFSET $%d LIMIT $%d", len(args)+1, len(args)+2)
	args = append(args, skip, take)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, take)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// FetchWithLines читает заказ вместе с позициями в исходном порядке.
func (r *orderRepository) FetchWithLines(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

// UpdateStatus меняет статус заказа и возвращает обновлённый агрегат.
func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, &domain.InvalidStatusError{Value: string(status)}
	}

	updateCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(updateCtx, `
		UPDATE orders
		SET status = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, string(status), id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	return r.FetchWithLines(ctx, id)
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.Quantity, &line.Price, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	if err := row.Scan(
		&order.ID, &order.TotalAmount, &order.TotalItems, &status,
		&order.Paid, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	return order, nil
}

// filterClause строит WHERE для фильтра; firstArg задаёт номер первого плейсхолдера.
func filterClause(filter domain.OrderFilter, firstArg int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", firstArg+len(args)))
		args = append(args, string(filter.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
