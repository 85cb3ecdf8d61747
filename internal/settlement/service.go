package settlement

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
)

// Identity numbers are 10 digits for an individual or 13 for a business.
var taxIDPattern = regexp.MustCompile(`^\d{10}(\d{3})?$`)

type DBLayer interface {
	GetTable(ctx context.Context, tableID string) (*models.Table, error)
	PendingTables(ctx context.Context, branchID string) ([]models.PendingTable, error)
	ReadyUnsettledOrders(ctx context.Context, tableID string) ([]models.Order, error)
	UnpaidLinesByOrder(ctx context.Context, orderID string) ([]models.OrderLine, error)
	ItemsByID(ctx context.Context, ids []string) (map[string]models.MenuItem, error)
	LatestInvoiceByTaxID(ctx context.Context, taxID string) (*models.InvoiceRequest, error)
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx TxLayer) error) error
}

// TxLayer is the write surface available inside one commit transaction.
// Either every step of a commit lands or none of them do.
type TxLayer interface {
	InsertPayment(ctx context.Context, p *models.PaymentRecord) error
	InsertInvoice(ctx context.Context, inv *models.InvoiceRequest) error
	// MarkLinePaid flips a whole line to PAID, conditional on the quantity
	// still being the one the selection was built from.
	MarkLinePaid(ctx context.Context, lineID string, expectQty int) error
	// ReduceLine shrinks the unpaid line to the remainder, conditional on
	// the quantity read; the paid fragment is inserted separately.
	ReduceLine(ctx context.Context, lineID string, remaining, expectQty, paidDelta int) error
	InsertLine(ctx context.Context, line *models.OrderLine) error
	UnpaidPayableCount(ctx context.Context, orderID string) (int, error)
	MarkOrderSettled(ctx context.Context, orderID string) error
}

type TableLock interface {
	LockTable(tableID, owner string) (bool, error)
	UnlockTable(tableID, owner string) error
}

type EventPublisher interface {
	PublishPaymentRecorded(p models.PaymentRecord) error
	PublishOrderSettled(orderID, tableID string) error
}

// Service converts a staff payment selection into durable payment, split-line
// and invoice state with quantity-conserving guarantees.
type Service struct {
	DB     DBLayer
	Lock   TableLock
	Events EventPublisher
	Logger *logger.Logger
}

func NewService(db DBLayer, lock TableLock, events EventPublisher, log *logger.Logger) *Service {
	return &Service{DB: db, Lock: lock, Events: events, Logger: log}
}

// PendingTables lists the tables of a branch that still have ready, unsettled
// orders, with their outstanding totals.
func (s *Service) PendingTables(ctx context.Context, staff models.StaffContext) ([]models.PendingTable, error) {
	return s.DB.PendingTables(ctx, staff.BranchID)
}

// ListPendingLines flattens every unpaid line of the table's ready, unsettled
// orders into a worklist. Song-request lines are included for visibility but
// marked non-payable.
func (s *Service) ListPendingLines(ctx context.Context, staff models.StaffContext, tableID string) ([]models.PendingLine, error) {
	if _, err := s.DB.GetTable(ctx, tableID); err != nil {
		return nil, fmt.Errorf("table %s: %w", tableID, err)
	}

	orders, err := s.DB.ReadyUnsettledOrders(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("fetch ready orders: %w", err)
	}

	var pending []models.PendingLine
	var itemIDs []string
	seen := map[string]bool{}
	lines := map[string][]models.OrderLine{}

	for _, o := range orders {
		ls, err := s.DB.UnpaidLinesByOrder(ctx, o.OrderID)
		if err != nil {
			return nil, fmt.Errorf("fetch lines of order %s: %w", o.OrderID, err)
		}
		lines[o.OrderID] = ls
		for _, l := range ls {
			if !seen[l.ItemID] {
				seen[l.ItemID] = true
				itemIDs = append(itemIDs, l.ItemID)
			}
		}
	}

	items, err := s.DB.ItemsByID(ctx, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve items: %w", err)
	}

	for _, o := range orders {
		for _, l := range lines[o.OrderID] {
			item, ok := items[l.ItemID]
			if !ok {
				return nil, fmt.Errorf("item %s: %w", l.ItemID, ErrNotFound)
			}
			pl := models.PendingLine{
				LineID:     l.LineID,
				OrderID:    o.OrderID,
				ItemID:     l.ItemID,
				ItemName:   item.Name,
				ItemType:   item.Type,
				OrderedQty: l.Quantity,
				Note:       l.Note,
				Payable:    item.Payable(),
				OrderedAt:  o.CreatedAt,
			}
			if pl.Payable {
				pl.UnitPrice = item.Price
			}
			pending = append(pending, pl)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].OrderedAt.Equal(pending[j].OrderedAt) {
			return pending[i].OrderedAt.Before(pending[j].OrderedAt)
		}
		return pending[i].ItemName < pending[j].ItemName
	})
	return pending, nil
}

// LookupInvoiceIdentity prefills the billing form from the most recent
// invoice recorded for a tax ID.
func (s *Service) LookupInvoiceIdentity(ctx context.Context, taxID string) (*models.InvoiceInfo, error) {
	if !taxIDPattern.MatchString(taxID) {
		return nil, ErrInvalidTaxID
	}
	inv, err := s.DB.LatestInvoiceByTaxID(ctx, taxID)
	if err != nil {
		return nil, err
	}
	return &models.InvoiceInfo{
		BilledName: inv.BilledName,
		TaxID:      inv.TaxID,
		Email:      inv.Email,
		Phone:      inv.Phone,
		Address:    inv.Address,
	}, nil
}

// Commit writes the selection as payment records, split lines and optional
// invoices, then re-closes every affected order. All writes run inside one
// transaction; a conflict on any line aborts the whole commit.
func (s *Service) Commit(ctx context.Context, staff models.StaffContext, tableID string, sel *Selection, invoiceInfo *models.InvoiceInfo) (*models.CommitResult, error) {
	selected := payableOnly(sel.Selected())
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}
	for _, l := range selected {
		if !models.ValidMethod(l.Method) {
			return nil, fmt.Errorf("line %s: %w", l.LineID, ErrMissingMethod)
		}
	}
	if invoiceInfo != nil {
		if !taxIDPattern.MatchString(invoiceInfo.TaxID) {
			return nil, ErrInvalidTaxID
		}
		if invoiceInfo.BilledName == "" {
			return nil, ErrMissingBilled
		}
	}

	table, err := s.DB.GetTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", tableID, err)
	}

	owner := uuid.NewString()
	ok, err := s.Lock.LockTable(tableID, owner)
	if err != nil {
		return nil, fmt.Errorf("acquire table lock: %w", err)
	}
	if !ok {
		return nil, ErrTableLocked
	}
	defer func() {
		if err := s.Lock.UnlockTable(tableID, owner); err != nil {
			s.Logger.Error("SETTLEMENT", fmt.Sprintf("unlock table %s: %v", tableID, err))
		}
	}()

	buckets := groupByMethod(selected)
	result := &models.CommitResult{PerMethod: map[models.PaymentMethod]float64{}}
	var payments []models.PaymentRecord

	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx TxLayer) error {
		// One payment record per method, then one invoice per affected
		// order inside that method bucket.
		for _, method := range methodOrder(buckets) {
			bucket := buckets[method]
			total := bucketTotal(bucket)
			payment := models.PaymentRecord{
				PaymentID: uuid.NewString(),
				TableID:   tableID,
				BranchID:  table.BranchID,
				Method:    method,
				Total:     total,
				CreatedAt: time.Now().UTC(),
			}
			if err := tx.InsertPayment(ctx, &payment); err != nil {
				return fmt.Errorf("insert payment (%s): %w", method, err)
			}
			payments = append(payments, payment)
			result.PerMethod[method] = total
			result.Total += total

			if invoiceInfo == nil {
				continue
			}
			for _, orderID := range orderOrder(bucket) {
				amount := orderSubtotal(bucket, orderID)
				inv := models.InvoiceRequest{
					InvoiceID:  uuid.NewString(),
					OrderID:    orderID,
					PaymentID:  payment.PaymentID,
					TableID:    tableID,
					BranchID:   table.BranchID,
					BilledName: invoiceInfo.BilledName,
					TaxID:      invoiceInfo.TaxID,
					Email:      invoiceInfo.Email,
					Phone:      invoiceInfo.Phone,
					Address:    invoiceInfo.Address,
					Method:     method,
					Amount:     amount,
					Status:     models.InvoicePending,
					CreatedAt:  time.Now().UTC(),
				}
				if err := tx.InsertInvoice(ctx, &inv); err != nil {
					return fmt.Errorf("insert invoice for order %s: %w", orderID, err)
				}
			}
		}

		// Split the selected lines. Quantity is conserved: the remainder
		// keeps the original line id, the paid portion becomes a new
		// fragment already in PAID state.
		for _, l := range selected {
			if l.PayableQty == l.OrderedQty {
				if err := tx.MarkLinePaid(ctx, l.LineID, l.OrderedQty); err != nil {
					return fmt.Errorf("mark line %s paid: %w", l.LineID, err)
				}
			} else {
				remaining := l.OrderedQty - l.PayableQty
				if err := tx.ReduceLine(ctx, l.LineID, remaining, l.OrderedQty, l.PayableQty); err != nil {
					return fmt.Errorf("reduce line %s: %w", l.LineID, err)
				}
				fragment := models.OrderLine{
					LineID:   uuid.NewString(),
					OrderID:  l.OrderID,
					ItemID:   l.ItemID,
					Quantity: l.PayableQty,
					Note:     l.Note,
					State:    models.LinePaid,
					PaidQty:  l.PayableQty,
				}
				if err := tx.InsertLine(ctx, &fragment); err != nil {
					return fmt.Errorf("insert paid fragment of line %s: %w", l.LineID, err)
				}
			}
			result.UnitsPaid += l.PayableQty
		}

		// Re-close orders: settled once no payable line remains unpaid.
		// Song lines never block settlement.
		for _, orderID := range distinctOrders(selected) {
			n, err := tx.UnpaidPayableCount(ctx, orderID)
			if err != nil {
				return fmt.Errorf("count unpaid lines of order %s: %w", orderID, err)
			}
			if n == 0 {
				if err := tx.MarkOrderSettled(ctx, orderID); err != nil {
					return fmt.Errorf("settle order %s: %w", orderID, err)
				}
				result.Settled = append(result.Settled, orderID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, p := range payments {
		if err := s.Events.PublishPaymentRecorded(p); err != nil {
			s.Logger.Error("SETTLEMENT", fmt.Sprintf("publish payment %s: %v", p.PaymentID, err))
		}
	}
	for _, orderID := range result.Settled {
		if err := s.Events.PublishOrderSettled(orderID, tableID); err != nil {
			s.Logger.Error("SETTLEMENT", fmt.Sprintf("publish settled order %s: %v", orderID, err))
		}
	}

	s.Logger.Info("SETTLEMENT", fmt.Sprintf("committed %d unit(s) on table %s for %.2f across %d method(s)",
		result.UnitsPaid, tableID, result.Total, len(result.PerMethod)))
	return result, nil
}

// payableOnly drops song-request entries defensively; the dialog disables
// them but a stale client could still submit one.
func payableOnly(selected []SelectedLine) []SelectedLine {
	out := selected[:0:0]
	for _, l := range selected {
		if l.Payable {
			out = append(out, l)
		}
	}
	return out
}

func groupByMethod(selected []SelectedLine) map[models.PaymentMethod][]SelectedLine {
	buckets := make(map[models.PaymentMethod][]SelectedLine)
	for _, l := range selected {
		buckets[l.Method] = append(buckets[l.Method], l)
	}
	return buckets
}

func methodOrder(buckets map[models.PaymentMethod][]SelectedLine) []models.PaymentMethod {
	methods := make([]models.PaymentMethod, 0, len(buckets))
	for m := range buckets {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods
}

func bucketTotal(bucket []SelectedLine) float64 {
	var total float64
	for _, l := range bucket {
		total += float64(l.PayableQty) * l.UnitPrice
	}
	return total
}

func orderOrder(bucket []SelectedLine) []string {
	var ids []string
	seen := map[string]bool{}
	for _, l := range bucket {
		if !seen[l.OrderID] {
			seen[l.OrderID] = true
			ids = append(ids, l.OrderID)
		}
	}
	sort.Strings(ids)
	return ids
}

func orderSubtotal(bucket []SelectedLine, orderID string) float64 {
	var total float64
	for _, l := range bucket {
		if l.OrderID == orderID {
			total += float64(l.PayableQty) * l.UnitPrice
		}
	}
	return total
}

func distinctOrders(selected []SelectedLine) []string {
	var ids []string
	seen := map[string]bool{}
	for _, l := range selected {
		if !seen[l.OrderID] {
			seen[l.OrderID] = true
			ids = append(ids, l.OrderID)
		}
	}
	sort.Strings(ids)
	return ids
}
