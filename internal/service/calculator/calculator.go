package calculator

import (
	"strings"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/catalog"
)

// Visible — множество товаров, участвующих в расчёте.
// nil означает весь каталог; пустое непустое множество не пропускает ничего.
type Visible map[string]struct{}

// NewVisible строит множество из списка идентификаторов.
func NewVisible(ids []string) Visible {
	v := make(Visible, len(ids))
	for _, id := range ids {
		v[id] = struct{}{}
	}
	return v
}

// Has проверяет, виден ли товар.
func (v Visible) Has(id string) bool {
	if v == nil {
		return true
	}
	_, ok := v[id]
	return ok
}

// Calculate считает итог и количество ящиков по видимым товарам.
// Товары, отсутствующие в каталоге, и неположительные количества дают 0.
func Calculate(products []domain.Product, quantities domain.Quantities, visible Visible) domain.Totals {
	var totals domain.Totals
	for _, p := range products {
		if !visible.Has(p.ID) {
			continue
		}
		qty := quantities.Get(p.ID)
		if qty == 0 {
			continue
		}
		totals.Total += float64(qty) * p.Price
		if p.Container == domain.ContainerCrate {
			totals.CrateCount += qty
		}
	}
	return totals
}

// VisibleIDs возвращает товары, чьё "name - size" содержит строку поиска
// без учёта регистра. Пустой поиск возвращает nil, то есть весь каталог.
func VisibleIDs(products []domain.Product, search string) Visible {
	term := strings.ToLower(search)
	if term == "" {
		return nil
	}

	visible := make(Visible)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.DisplayName()), term) {
			visible[p.ID] = struct{}{}
		}
	}
	return visible
}

// BuildItems формирует позиции заказа со снимком цены в порядке отображения каталога.
// В заказ попадают только видимые товары с количеством больше нуля.
func BuildItems(products []domain.Product, quantities domain.Quantities, visible Visible) []domain.OrderLine {
	var items []domain.OrderLine
	for _, p := range catalog.Sorted(products) {
		if !visible.Has(p.ID) {
			continue
		}
		qty := quantities.Get(p.ID)
		if qty == 0 {
			continue
		}
		items = append(items, domain.OrderLine{
			ProductID: p.ID,
			Price:     p.Price,
			Quantity:  qty,
		})
	}
	return items
}

// CrateCount считает ящики в сохранённом заказе по текущему каталогу.
// Позиции с неразрешёнными ссылками ящиками не считаются.
func CrateCount(record domain.OrderRecord, index catalog.Index) int {
	count := 0
	for _, item := range record.Items {
		if p, ok := index[item.ProductID]; ok && p.Container == domain.ContainerCrate {
			count += item.Quantity
		}
	}
	return count
}
