package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
)

// PostgreSQLStore runs the closing report queries over plain SQL. It shares
// the service's database but keeps its own read-only query surface.
type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB creates the closing store on an existing
// database connection.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) *PostgreSQLStore {
	return &PostgreSQLStore{db: db, log: log}
}

// OrdersInRange fetches the orders of one branch created inside the window,
// with their table names resolved.
func (s *PostgreSQLStore) OrdersInRange(ctx context.Context, branchID string, start, end time.Time) ([]OrderRow, error) {
	s.log.LogDatabase("SELECT", "orders", fmt.Sprintf("Closing window %s to %s for branch %s",
		start.Format(time.RFC3339), end.Format(time.RFC3339), branchID))

	query := `
    SELECT o.order_id, o.table_id, o.branch_id, o.type, o.status, o.total, o.settled, o.created_at,
           COALESCE(t.name, '') AS table_name
    FROM orders o
    LEFT JOIN venue_tables t ON t.table_id = o.table_id
    WHERE o.branch_id = $1 AND o.created_at >= $2 AND o.created_at < $3
    ORDER BY o.created_at, o.order_id
    `

	rows, err := s.db.QueryContext(ctx, query, branchID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query closing orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRow
	for rows.Next() {
		var r OrderRow
		err := rows.Scan(
			&r.OrderID, &r.TableID, &r.BranchID, &r.Type, &r.Status, &r.Total, &r.Settled, &r.CreatedAt,
			&r.TableName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan closing order: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// LinesForOrders fetches every line of the given orders joined with its item
// metadata, paid fragments included.
func (s *PostgreSQLStore) LinesForOrders(ctx context.Context, orderIDs []string) ([]LineRow, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	s.log.LogDatabase("SELECT", "order_lines", fmt.Sprintf("Fetching lines of %d order(s)", len(orderIDs)))

	query := `
    SELECT l.order_id, l.item_id, i.name, i.type, l.quantity, COALESCE(i.price, 0)
    FROM order_lines l
    JOIN menu_items i ON i.item_id = l.item_id
    WHERE l.order_id = ANY($1)
    ORDER BY l.order_id, i.name, l.line_id
    `

	rows, err := s.db.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query closing lines: %w", err)
	}
	defer rows.Close()

	var out []LineRow
	for rows.Next() {
		var r LineRow
		if err := rows.Scan(&r.OrderID, &r.ItemID, &r.Name, &r.Type, &r.Quantity, &r.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan closing line: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// PaymentsInRange fetches the payment records of the window.
func (s *PostgreSQLStore) PaymentsInRange(ctx context.Context, branchID string, start, end time.Time) ([]models.PaymentRecord, error) {
	s.log.LogDatabase("SELECT", "payments", fmt.Sprintf("Payments window %s to %s for branch %s",
		start.Format(time.RFC3339), end.Format(time.RFC3339), branchID))

	query := `
    SELECT payment_id, table_id, branch_id, method, total, created_at
    FROM payments
    WHERE branch_id = $1 AND created_at >= $2 AND created_at < $3
    ORDER BY created_at, payment_id
    `

	rows, err := s.db.QueryContext(ctx, query, branchID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var out []models.PaymentRecord
	for rows.Next() {
		var p models.PaymentRecord
		if err := rows.Scan(&p.PaymentID, &p.TableID, &p.BranchID, &p.Method, &p.Total, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}
