package closing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"mesa-pos/internal/closing/storage"
	"mesa-pos/internal/logger"
	"mesa-pos/internal/models"
)

var ErrBadDate = errors.New("date must be YYYY-MM-DD")

// Service computes the daily closing report: a pure projection of the
// orders, lines and payments of one local calendar day. Calling it twice
// with no intervening writes returns identical output.
type Service struct {
	Store  storage.Store
	Logger *logger.Logger
}

func NewService(store storage.Store, log *logger.Logger) *Service {
	return &Service{Store: store, Logger: log}
}

// CloseDay resolves the local calendar day to a UTC [start, end) range and
// aggregates everything inside it. Read-only.
func (s *Service) CloseDay(ctx context.Context, date, tz string, staff models.StaffContext) (*models.DailyClosingReport, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", tz, err)
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadDate, date)
	}
	start := day.UTC()
	end := day.AddDate(0, 0, 1).UTC()

	orders, err := s.Store.OrdersInRange(ctx, staff.BranchID, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch closing orders: %w", err)
	}

	orderIDs := make([]string, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.OrderID
	}
	lines, err := s.Store.LinesForOrders(ctx, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch closing lines: %w", err)
	}
	payments, err := s.Store.PaymentsInRange(ctx, staff.BranchID, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch closing payments: %w", err)
	}

	report := &models.DailyClosingReport{
		Date:     date,
		Timezone: tz,
		BranchID: staff.BranchID,
		Songs:    songSummary(lines),
		Revenue:  revenueSummary(payments),
		Orders:   orderBreakdown(orders, lines),
	}

	s.Logger.Info("CLOSING", fmt.Sprintf("closed %s (%s): %d order(s), revenue %.2f, %d song(s)",
		date, tz, len(report.Orders), report.Revenue.Total, report.Songs.Total))
	return report, nil
}

// songSummary tallies song-request lines per song.
func songSummary(lines []storage.LineRow) models.SongSummary {
	byItem := map[string]*models.SongTally{}
	var ids []string
	total := 0
	for _, l := range lines {
		if l.Type != models.ItemSong {
			continue
		}
		total += l.Quantity
		t, ok := byItem[l.ItemID]
		if !ok {
			byItem[l.ItemID] = &models.SongTally{ItemID: l.ItemID, Name: l.Name}
			t = byItem[l.ItemID]
			ids = append(ids, l.ItemID)
		}
		t.Quantity += l.Quantity
	}

	tally := make([]models.SongTally, 0, len(ids))
	for _, id := range ids {
		tally = append(tally, *byItem[id])
	}
	sort.Slice(tally, func(i, j int) bool {
		if tally[i].Name != tally[j].Name {
			return tally[i].Name < tally[j].Name
		}
		return tally[i].ItemID < tally[j].ItemID
	})
	return models.SongSummary{Total: total, Tally: tally}
}

// revenueSummary groups payment records by method.
func revenueSummary(payments []models.PaymentRecord) models.RevenueSummary {
	byMethod := map[models.PaymentMethod]float64{}
	var methods []models.PaymentMethod
	var total float64
	for _, p := range payments {
		if _, ok := byMethod[p.Method]; !ok {
			methods = append(methods, p.Method)
		}
		byMethod[p.Method] += p.Total
		total += p.Total
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })

	out := make([]models.MethodTotal, 0, len(methods))
	for _, m := range methods {
		out = append(out, models.MethodTotal{Method: m, Total: byMethod[m]})
	}
	return models.RevenueSummary{ByMethod: out, Total: total}
}

// orderBreakdown builds the per-order detail. The type tag is derived from
// the lines actually present, not trusted from the stored order.
func orderBreakdown(orders []storage.OrderRow, lines []storage.LineRow) []models.ClosingOrder {
	byOrder := map[string][]storage.LineRow{}
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}

	out := make([]models.ClosingOrder, 0, len(orders))
	for _, o := range orders {
		co := models.ClosingOrder{
			OrderID:   o.OrderID,
			TableID:   o.TableID,
			TableName: o.TableName,
			Status:    o.Status,
			Total:     o.Total,
			CreatedAt: o.CreatedAt,
		}
		hasProducts, hasSongs := false, false
		for _, l := range byOrder[o.OrderID] {
			cl := models.ClosingLine{
				ItemID:   l.ItemID,
				Name:     l.Name,
				Type:     l.Type,
				Quantity: l.Quantity,
			}
			if l.Type == models.ItemProduct {
				hasProducts = true
				cl.UnitPrice = l.UnitPrice
				cl.Subtotal = float64(l.Quantity) * l.UnitPrice
			} else {
				hasSongs = true
			}
			co.Lines = append(co.Lines, cl)
		}
		switch {
		case hasProducts && hasSongs:
			co.Type = models.OrderMixed
		case hasSongs:
			co.Type = models.OrderSongs
		default:
			co.Type = models.OrderProducts
		}
		out = append(out, co)
	}
	return out
}
