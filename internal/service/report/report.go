// Package report превращает выборку истории в плоский набор строк для экспорта.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/money"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/catalog"
)

// RowKind различает строки отчёта.
type RowKind string

const (
	RowOrder      RowKind = "order"
	RowItem       RowKind = "item"
	RowGrandTotal RowKind = "grand_total"
)

// Row — одна строка отчёта. Набор заполненных полей зависит от Kind:
// заголовок заказа несёт дату и подытог, позиция несёт товар и суммы,
// итоговая строка несёт общий итог в Total.
type Row struct {
	Kind      RowKind   `json:"kind"`
	OrderKey  string    `json:"order_key,omitempty"`
	Date      time.Time `json:"date,omitzero"`
	Label     string    `json:"label,omitempty"`
	Name      string    `json:"name,omitempty"`
	Size      string    `json:"size,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	UnitPrice float64   `json:"unit_price,omitempty"`
	LineTotal float64   `json:"line_total,omitempty"`
	Total     float64   `json:"total"`
}

// Build строит строки: для каждого заказа заголовок и позиции, в конце общий итог.
// Даты переводятся в loc; ссылки на удалённые товары подписываются как Unknown.
func Build(records []domain.OrderRecord, products []domain.Product, loc *time.Location) []Row {
	if loc == nil {
		loc = time.Local
	}

	index := catalog.NewIndex(products)
	rows := make([]Row, 0, len(records)*2+1)
	var grand float64

	for _, rec := range records {
		date := rec.Date.In(loc)
		rows = append(rows, Row{
			Kind:     RowOrder,
			OrderKey: rec.Key(),
			Date:     date,
			Total:    rec.Total,
		})

		for _, item := range rec.Items {
			ref := index.Resolve(item.ProductID)
			rows = append(rows, Row{
				Kind:      RowItem,
				OrderKey:  rec.Key(),
				Date:      date,
				Label:     ref.Label(),
				Name:      ref.ProductName(),
				Size:      ref.Size,
				Quantity:  item.Quantity,
				UnitPrice: item.Price,
				LineTotal: item.Amount(),
				Total:     rec.Total,
			})
		}
		grand += rec.Total
	}

	rows = append(rows, Row{Kind: RowGrandTotal, Total: grand})
	return rows
}

// CSVHeader — колонки CSV-выгрузки.
var CSVHeader = []string{"Date", "Time", "Product Name", "Size", "Price", "Quantity", "Item Total", "Order Total"}

const (
	csvDateLayout = "02/01/2006"
	csvTimeLayout = "15:04:05"
)

// WriteCSV пишет строки позиций в CSV; заголовки заказов и итог в CSV не выводятся.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, row := range rows {
		if row.Kind != RowItem {
			continue
		}
		record := []string{
			row.Date.Format(csvDateLayout),
			row.Date.Format(csvTimeLayout),
			row.Name,
			row.Size,
			money.Format(row.UnitPrice),
			strconv.Itoa(row.Quantity),
			money.Format(row.LineTotal),
			money.Format(row.Total),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
