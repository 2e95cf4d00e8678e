// Package session владеет состоянием рабочего места: снимком каталога,
// журналом заказов и настройками. Все операции сериализуются одним мьютексом.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/metrics"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/analytics"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/calculator"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/catalog"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/ledger"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/report"
)

// Результаты начального заполнения каталога для метрик.
const (
	SeedSeeded  = "seeded"
	SeedSkipped = "skipped"
	SeedFailed  = "failed"
)

// QuoteRequest — введённые количества и текущий фильтр отображения.
// Если Visible не nil, он задаёт видимые товары явно, иначе они
// вычисляются по Search. Пустой Search означает весь каталог.
type QuoteRequest struct {
	Quantities domain.Quantities
	Search     string
	Visible    []string
}

// HistoryEntry — запись истории с количеством ящиков по текущему каталогу.
type HistoryEntry struct {
	Record     domain.OrderRecord
	CrateCount int
}

// DetailLine — строка просмотра заказа.
type DetailLine struct {
	ProductID string
	Name      string
	Resolved  bool
	Quantity  int
	Price     float64
	Amount    float64
}

// OrderDetails — заказ с разрешёнными названиями товаров.
type OrderDetails struct {
	Key   string
	Date  time.Time
	Total float64
	Lines []DetailLine
}

// Desk — сессия рабочего места. Снимок каталога обновляется через Refresh
// после каждой мутации каталога или журнала.
type Desk struct {
	mu sync.Mutex

	kv      domain.KeyValueStore
	catalog *catalog.Store
	ledger  *ledger.Ledger
	seed    domain.SeedProvider
	outbox  domain.OutboxRepository
	metrics *metrics.DeskMetrics
	logger  *log.Entry
	loc     *time.Location
	now     func() time.Time

	products  []domain.Product
	lastSaved time.Time
}

// New создаёт Desk поверх key-value хранилища.
func New(kv domain.KeyValueStore, options ...Option) *Desk {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "desk")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Desk{
		kv:      kv,
		catalog: catalog.NewStore(kv, logger.WithField("store", "catalog")),
		ledger:  ledger.New(kv, loc, logger.WithField("store", "ledger")),
		seed:    opts.Seed,
		outbox:  opts.Outbox,
		metrics: opts.Metrics,
		logger:  logger,
		loc:     loc,
		now:     now,
	}
}

// Location возвращает зону календарных дней.
func (d *Desk) Location() *time.Location {
	return d.loc
}

// Bootstrap загружает состояние и заполняет пустой каталог из поставщика по умолчанию.
// Ошибка поставщика не фатальна: работа продолжается с пустым каталогом.
func (d *Desk) Bootstrap(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.refresh(ctx); err != nil {
		return err
	}

	latest, err := d.ledger.Latest(ctx)
	if err != nil {
		return err
	}
	d.lastSaved = latest

	if len(d.products) > 0 || d.seed == nil {
		d.metrics.RecordSeed(SeedSkipped)
		return nil
	}

	products, err := d.seed.Fetch(ctx)
	if err != nil {
		d.logger.WithError(err).Warn("failed to load default catalog, starting with empty catalog")
		d.metrics.RecordSeed(SeedFailed)
		return nil
	}
	if len(products) == 0 {
		d.metrics.RecordSeed(SeedSkipped)
		return nil
	}

	if err := d.catalog.Replace(ctx, products); err != nil {
		d.logger.WithError(err).Warn("failed to store default catalog, starting with empty catalog")
		d.metrics.RecordSeed(SeedFailed)
		return nil
	}

	d.metrics.RecordSeed(SeedSeeded)
	d.logger.WithField("products", len(products)).Info("default catalog seeded")
	d.publish(domain.AggregateCatalog, domain.KeyProducts, domain.EventCatalogSeeded, catalogSeededEvent{Products: len(products)})

	return d.refresh(ctx)
}

// Refresh перечитывает снимок каталога из хранилища.
func (d *Desk) Refresh(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refresh(ctx)
}

func (d *Desk) refresh(ctx context.Context) error {
	products, err := d.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("refresh catalog: %w", err)
	}
	records, err := d.ledger.List(ctx)
	if err != nil {
		return fmt.Errorf("refresh history: %w", err)
	}

	d.products = products
	d.metrics.SetSnapshotSizes(len(products), len(records))
	return nil
}

// Products возвращает каталог в порядке отображения.
func (d *Desk) Products() []domain.Product {
	d.mu.Lock()
	defer d.mu.Unlock()
	return catalog.Sorted(d.products)
}

// AddProduct добавляет товар с новым идентификатором.
func (d *Desk) AddProduct(ctx context.Context, draft catalog.Draft) (domain.Product, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe("add_product", time.Now())

	product, err := d.catalog.Add(ctx, draft)
	if err != nil {
		return domain.Product{}, err
	}

	d.metrics.RecordCatalogChange("add")
	d.publish(domain.AggregateCatalog, product.ID, domain.EventProductUpserted, productEvent{Product: product})
	return product, d.refresh(ctx)
}

// UpdateProduct заменяет редактируемые поля существующего товара.
func (d *Desk) UpdateProduct(ctx context.Context, id string, draft catalog.Draft) (domain.Product, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe("update_product", time.Now())

	if _, ok, err := d.catalog.FindByID(ctx, id); err != nil {
		return domain.Product{}, err
	} else if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}

	product := domain.Product{
		ID:        id,
		Name:      draft.Name,
		Size:      draft.Size,
		Price:     draft.Price,
		Category:  draft.Category,
		Container: draft.Container,
	}
	if err := d.catalog.Upsert(ctx, product); err != nil {
		return domain.Product{}, err
	}

	updated, _, err := d.catalog.FindByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	d.metrics.RecordCatalogChange("update")
	d.publish(domain.AggregateCatalog, id, domain.EventProductUpserted, productEvent{Product: updated})
	return updated, d.refresh(ctx)
}

// RemoveProduct удаляет товар. Сохранённые заказы продолжают ссылаться на него
// и показывают его как Unknown.
func (d *Desk) RemoveProduct(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe("remove_product", time.Now())

	removed, err := d.catalog.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	d.metrics.RecordCatalogChange("remove")
	d.publish(domain.AggregateCatalog, id, domain.EventProductRemoved, productRemovedEvent{ID: id})
	return d.refresh(ctx)
}

// Quote считает итог по видимым товарам. Операция чистая.
func (d *Desk) Quote(req QuoteRequest) domain.Totals {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe("quote", time.Now())

	return calculator.Calculate(d.products, req.Quantities, d.visible(req))
}

// SaveOrder сохраняет видимые позиции с ненулевым количеством как новый заказ
// со снимком цен. Пустой заказ возвращает уведомление ErrNothingToSave.
func (d *Desk) SaveOrder(ctx context.Context, req QuoteRequest) (domain.OrderRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe("save_order", time.Now())

	visible := d.visible(req)
	items := calculator.BuildItems(d.products, req.Quantities, visible)
	totals := calculator.Calculate(d.products, req.Quantities, visible)
	if len(items) == 0 || totals.Total <= 0 {
		d.metrics.RecordNotice("nothing_to_save")
		return domain.OrderRecord{}, domain.ErrNothingToSave
	}

	record := domain.NewOrderRecord(d.nextTimestamp(), items)
	if err := d.ledger.Append(ctx, record); err != nil {
		return domain.OrderRecord{}, err
	}
	d.lastSaved = record.Date

	d.metrics.RecordOrderSaved(record.Total)
	d.publish(domain.AggregateOrder, record.Key(), domain.EventOrderSaved, orderSavedEvent{
		Date:       record.Key(),
		Total:      record.Total,
		CrateCount: totals.CrateCount,
		Items:      record.Items,
	})
	d.logger.WithFields(log.Fields{
		"order_date": record.Key(),
		"total":      record.Total,
		"items":      len(record.Items),
	}).Info("order saved")

	return record, d.refresh(ctx)
}

// nextTimestamp выдаёт строго возрастающие ключи с точностью до миллисекунды,
// даже если два сохранения пришлись на одну миллисекунду.
func (d *Desk) nextTimestamp() time.Time {
	ts := domain.TruncateKey(d.now())
	if !d.lastSaved.IsZero() && !ts.After(d.lastSaved) {
		ts = d.lastSaved.Add(time.Millisecond)
	}
	return ts
}

func (d *Desk) visible(req QuoteRequest) calculator.Visible {
	if req.Visible != nil {
		return calculator.NewVisible(req.Visible)
	}
	return calculator.VisibleIDs(d.products, req.Search)
}

// History возвращает отфильтрованную историю от новых к старым.
func (d *Desk) History(ctx context.Context, r domain.DateRange) ([]HistoryEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.ledger.FilterByDateRange(ctx, r)
	if err != nil {
		return nil, err
	}

	index := catalog.NewIndex(d.products)
	entries := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, HistoryEntry{
			Record:     rec,
			CrateCount: calculator.CrateCount(rec, index),
		})
	}
	return entries, nil
}

// OrderDetails возвращает заказ с названиями товаров из текущего каталога.
func (d *Desk) OrderDetails(ctx context.Context, key string) (OrderDetails, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, err := d.ledger.Find(ctx, key)
	if err != nil {
		return OrderDetails{}, err
	}

	index := catalog.NewIndex(d.products)
	details := OrderDetails{
		Key:   rec.Key(),
		Date:  rec.Date.In(d.loc),
		Total: rec.Total,
		Lines: make([]DetailLine, 0, len(rec.Items)),
	}
	for _, item := range rec.Items {
		ref := index.Resolve(item.ProductID)
		details.Lines = append(details.Lines, DetailLine{
			ProductID: item.ProductID,
			Name:      ref.DisplayName(),
			Resolved:  ref.Resolved,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Amount:    item.Amount(),
		})
	}
	return details, nil
}

// LastOrderQuantities возвращает количества последнего заказа для товаров,
// которые есть в текущем каталоге.
func (d *Desk) LastOrderQuantities(ctx context.Context) (domain.Quantities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	last, err := d.ledger.Last(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoOrders) {
			d.metrics.RecordNotice("no_orders")
		}
		return nil, err
	}

	index := catalog.NewIndex(d.products)
	quantities := make(domain.Quantities, len(last.Items))
	for _, item := range last.Items {
		if _, ok := index[item.ProductID]; ok {
			quantities[item.ProductID] = item.Quantity
		}
	}
	return quantities, nil
}

// DeleteHistory удаляет записи по ключам и возвращает число удалённых.
func (d *Desk) DeleteHistory(ctx context.Context, keys []string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe("delete_history", time.Now())

	if len(keys) == 0 {
		d.metrics.RecordNotice("nothing_selected")
		return 0, domain.ErrNothingSelected
	}

	removed, err := d.ledger.DeleteByDates(ctx, keys)
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}

	d.metrics.RecordHistoryDeleted(removed)
	d.publish(domain.AggregateOrder, "", domain.EventHistoryDeleted, historyDeletedEvent{Dates: keys, Removed: removed})
	return removed, d.refresh(ctx)
}

// Analytics строит отчёт за месяц; false означает отсутствие заказов в месяце.
func (d *Desk) Analytics(ctx context.Context, year int, month time.Month) (analytics.MonthlyReport, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe("analytics", time.Now())

	records, err := d.ledger.List(ctx)
	if err != nil {
		return analytics.MonthlyReport{}, false, err
	}

	rep, ok := analytics.Monthly(records, d.products, year, month, d.loc)
	if !ok {
		d.metrics.RecordNotice("no_data")
	}
	return rep, ok, nil
}

// ReportRows строит строки выгрузки по отфильтрованной истории.
func (d *Desk) ReportRows(ctx context.Context, r domain.DateRange) ([]report.Row, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe("report_rows", time.Now())

	records, err := d.ledger.FilterByDateRange(ctx, r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		d.metrics.RecordNotice("nothing_to_export")
		return nil, domain.ErrNothingToExport
	}
	return report.Build(records, d.products, d.loc), nil
}

// Export возвращает полную резервную копию каталога и истории.
func (d *Desk) Export(ctx context.Context) (domain.Backup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	products, err := d.catalog.List(ctx)
	if err != nil {
		return domain.Backup{}, err
	}
	records, err := d.ledger.List(ctx)
	if err != nil {
		return domain.Backup{}, err
	}
	return domain.Backup{Products: products, History: records}, nil
}

// Import проверяет резервную копию и атомарно заменяет каталог и историю.
// Некорректный файл отклоняется с ErrInvalidBackup без изменения состояния.
func (d *Desk) Import(ctx context.Context, raw []byte) (domain.Backup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer d.observe("import", time.Now())

	backup, err := domain.ParseBackup(raw)
	if err != nil {
		d.metrics.RecordImport(false)
		return domain.Backup{}, err
	}

	productsRaw, err := json.Marshal(backup.Products)
	if err != nil {
		return domain.Backup{}, fmt.Errorf("encode products: %w", err)
	}
	historyRaw, err := json.Marshal(backup.History)
	if err != nil {
		return domain.Backup{}, fmt.Errorf("encode history: %w", err)
	}

	if err := d.kv.PutMany(ctx, map[string][]byte{
		domain.KeyProducts: productsRaw,
		domain.KeyHistory:  historyRaw,
	}); err != nil {
		return domain.Backup{}, fmt.Errorf("store backup: %w", err)
	}

	latest, err := d.ledger.Latest(ctx)
	if err != nil {
		return domain.Backup{}, err
	}
	d.lastSaved = latest

	d.metrics.RecordImport(true)
	d.publish(domain.AggregateBackup, "", domain.EventBackupImported, backupImportedEvent{
		Products: len(backup.Products),
		Orders:   len(backup.History),
	})
	d.logger.WithFields(log.Fields{
		"products": len(backup.Products),
		"orders":   len(backup.History),
	}).Info("backup imported")

	return backup, d.refresh(ctx)
}

// Theme возвращает сохранённую тему или тему по умолчанию.
func (d *Desk) Theme(ctx context.Context) (domain.Theme, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, err := d.kv.Get(ctx, domain.KeyTheme)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return domain.DefaultTheme, nil
	}
	if err != nil {
		return "", fmt.Errorf("load theme: %w", err)
	}

	var theme domain.Theme
	if err := json.Unmarshal(raw, &theme); err != nil || !theme.Valid() {
		d.logger.WithField("raw", string(raw)).Warn("stored theme is invalid, using default")
		return domain.DefaultTheme, nil
	}
	return theme, nil
}

// SetTheme сохраняет тему оформления.
func (d *Desk) SetTheme(ctx context.Context, theme domain.Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrThemeInvalid, theme)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	raw, err := json.Marshal(theme)
	if err != nil {
		return fmt.Errorf("encode theme: %w", err)
	}
	if err := d.kv.Put(ctx, domain.KeyTheme, raw); err != nil {
		return fmt.Errorf("store theme: %w", err)
	}
	return nil
}

func (d *Desk) observe(operation string, start time.Time) {
	d.metrics.RecordOperationDuration(operation, time.Since(start))
}
