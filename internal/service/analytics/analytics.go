package analytics

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/catalog"
)

// TopProductsLimit — сколько товаров попадает в рейтинг месяца.
const TopProductsLimit = 5

// ProductSales — накопленная выручка по товару (или по Unknown).
type ProductSales struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// DaySales — выручка за календарный день месяца.
type DaySales struct {
	Day   int     `json:"day"`
	Value float64 `json:"value"`
}

// MonthlyReport — сводка продаж за календарный месяц.
type MonthlyReport struct {
	Year        int            `json:"year"`
	Month       time.Month     `json:"month"`
	Orders      int            `json:"orders"`
	TotalSales  float64        `json:"total_sales"`
	TopProducts []ProductSales `json:"top_products"`
	DailySales  []DaySales     `json:"daily_sales"`
}

// Monthly строит отчёт за месяц. Второе значение false означает
// "нет данных": в месяце нет ни одного заказа.
func Monthly(records []domain.OrderRecord, products []domain.Product, year int, month time.Month, loc *time.Location) (MonthlyReport, bool) {
	if loc == nil {
		loc = time.Local
	}

	monthRecords := make([]domain.OrderRecord, 0, len(records))
	for _, rec := range records {
		y, m, _ := rec.Date.In(loc).Date()
		if y == year && m == month {
			monthRecords = append(monthRecords, rec)
		}
	}
	if len(monthRecords) == 0 {
		return MonthlyReport{}, false
	}

	report := MonthlyReport{
		Year:       year,
		Month:      month,
		Orders:     len(monthRecords),
		DailySales: make([]DaySales, DaysIn(year, month, loc)),
	}
	for i := range report.DailySales {
		report.DailySales[i].Day = i + 1
	}

	index := catalog.NewIndex(products)
	byLabel := make(map[string]int)
	var sales []ProductSales

	for _, rec := range monthRecords {
		report.TotalSales += rec.Total
		report.DailySales[rec.Date.In(loc).Day()-1].Value += rec.Total

		for _, item := range rec.Items {
			label := index.Resolve(item.ProductID).Label()
			pos, ok := byLabel[label]
			if !ok {
				pos = len(sales)
				byLabel[label] = pos
				sales = append(sales, ProductSales{Label: label})
			}
			sales[pos].Value += item.Amount()
		}
	}

	sort.SliceStable(sales, func(i, j int) bool { return sales[i].Value > sales[j].Value })
	if len(sales) > TopProductsLimit {
		sales = sales[:TopProductsLimit]
	}
	report.TopProducts = sales

	return report, true
}

// DaysIn возвращает число дней в месяце.
func DaysIn(year int, month time.Month, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// ParseMonth разбирает месяц в формате YYYY-MM.
func ParseMonth(raw string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}
