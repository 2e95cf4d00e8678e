package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// OrderKeyLayout — формат ключа заказа: UTC с миллисекундами.
const OrderKeyLayout = "2006-01-02T15:04:05.000Z07:00"

// OrderLine представляет одну позицию сохранённого заказа.
// Price — снимок цены на момент сохранения, каталог после этого на неё не влияет.
type OrderLine struct {
	ProductID string  `json:"id"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// Amount возвращает сумму позиции без округления.
func (l OrderLine) Amount() float64 {
	return l.Price * float64(l.Quantity)
}

// OrderRecord — запись журнала истории заказов.
type OrderRecord struct {
	// Date — момент сохранения, одновременно ключ записи (точность до миллисекунды).
	Date  time.Time
	Total float64
	Items []OrderLine
}

// NewOrderRecord создаёт запись из позиций, копируя их и считая итог.
// Позиции с нулевым количеством отбрасываются.
func NewOrderRecord(date time.Time, lines []OrderLine) OrderRecord {
	items := make([]OrderLine, 0, len(lines))
	var total float64
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		items = append(items, line)
		total += line.Amount()
	}
	return OrderRecord{
		Date:  TruncateKey(date),
		Total: total,
		Items: items,
	}
}

// Key возвращает строковый ключ записи.
func (o OrderRecord) Key() string {
	return FormatOrderKey(o.Date)
}

// Clone возвращает копию записи, не разделяющую срез позиций.
func (o OrderRecord) Clone() OrderRecord {
	dst := o
	dst.Items = append([]OrderLine(nil), o.Items...)
	return dst
}

// Validate проверяет инварианты записи истории.
func (o OrderRecord) Validate() []error {
	var errs []error

	if o.Date.IsZero() {
		errs = append(errs, ErrOrderDateRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	if o.Total < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	return errs
}

type orderRecordJSON struct {
	Date  string      `json:"date"`
	Total float64     `json:"total"`
	Items []OrderLine `json:"items"`
}

// MarshalJSON сохраняет дату в ISO-8601 с миллисекундами.
func (o OrderRecord) MarshalJSON() ([]byte, error) {
	items := o.Items
	if items == nil {
		items = []OrderLine{}
	}
	return json.Marshal(orderRecordJSON{
		Date:  o.Key(),
		Total: o.Total,
		Items: items,
	})
}

// UnmarshalJSON разбирает запись из формата хранилища.
func (o *OrderRecord) UnmarshalJSON(data []byte) error {
	var raw orderRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := ParseOrderKey(raw.Date)
	if err != nil {
		return err
	}
	o.Date = date
	o.Total = raw.Total
	o.Items = raw.Items
	return nil
}

// FormatOrderKey форматирует момент времени как ключ заказа.
func FormatOrderKey(t time.Time) string {
	return TruncateKey(t).Format(OrderKeyLayout)
}

// ParseOrderKey разбирает ключ заказа (RFC 3339 с любой дробной частью).
func ParseOrderKey(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrOrderDateInvalid, raw)
	}
	return TruncateKey(t), nil
}

// TruncateKey приводит время к точности ключа: UTC, миллисекунды.
func TruncateKey(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Quantities — введённые количества по идентификатору товара.
type Quantities map[string]int

// Get возвращает количество, считая отрицательные значения нулём.
func (q Quantities) Get(productID string) int {
	if v := q[productID]; v > 0 {
		return v
	}
	return 0
}

// MaxQuantity — верхняя граница количества; большие значения усекаются до неё.
const MaxQuantity = math.MaxInt32

// ParseQuantity приводит сырое значение количества к целому >= 0.
// Дробная часть отбрасывается, нечисловые и отрицательные значения дают 0,
// слишком большие усекаются до MaxQuantity.
func ParseQuantity(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) {
		ch := raw[end]
		if ch >= '0' && ch <= '9' || (end == 0 && (ch == '-' || ch == '+')) {
			end++
			continue
		}
		break
	}
	n, err := strconv.ParseInt(raw[:end], 10, 64)
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		return MaxQuantity
	}
	if err != nil || n < 0 {
		return 0
	}
	return int(min(n, MaxQuantity))
}

// QuantityFromJSON приводит значение из JSON (число или строку) к количеству.
func QuantityFromJSON(raw json.RawMessage) int {
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		if math.IsNaN(num) || num <= 0 {
			return 0
		}
		if num >= MaxQuantity {
			return MaxQuantity
		}
		return int(num)
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return ParseQuantity(str)
	}
	return 0
}

// Totals — результат расчёта заказа.
type Totals struct {
	Total      float64 `json:"total"`
	CrateCount int     `json:"crate_count"`
}

// DateRange — фильтр истории по календарным дням. Нулевая граница не ограничивает.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Bounds возвращает границы диапазона в заданной зоне:
// начало дня From (00:00:00.000) и конец дня To (23:59:59.999).
func (r DateRange) Bounds(loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.Local
	}
	if !r.From.IsZero() {
		y, m, d := r.From.Date()
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	if !r.To.IsZero() {
		y, m, d := r.To.Date()
		end = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
	}
	return start, end
}

// Contains проверяет попадание момента времени в диапазон.
func (r DateRange) Contains(t time.Time, loc *time.Location) bool {
	start, end := r.Bounds(loc)
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
