package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

// Ledger — журнал сохранённых заказов под ключом history.
type Ledger struct {
	kv     domain.KeyValueStore
	loc    *time.Location
	logger *log.Entry
}

// New создаёт журнал. loc задаёт календарные дни для фильтрации по датам.
func New(kv domain.KeyValueStore, loc *time.Location, logger *log.Entry) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = log.WithField("component", "ledger")
	}
	return &Ledger{kv: kv, loc: loc, logger: logger}
}

// Location возвращает зону, в которой считаются календарные дни.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// List возвращает копию журнала строго от новых к старым.
func (l *Ledger) List(ctx context.Context) ([]domain.OrderRecord, error) {
	records, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(records)
	return records, nil
}

// Append добавляет запись. Ключ (момент сохранения с точностью до мс) должен быть уникален.
func (l *Ledger) Append(ctx context.Context, record domain.OrderRecord) error {
	record = record.Clone()
	record.Date = domain.TruncateKey(record.Date)
	if errs := record.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	records, err := l.load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range records {
		if existing.Date.Equal(record.Date) {
			return fmt.Errorf("%w: %s", domain.ErrOrderDateConflict, record.Key())
		}
	}

	records = append(records, record)
	sortNewestFirst(records)
	return l.save(ctx, records)
}

// FilterByDateRange возвращает записи в границах календарных дней.
// Отсутствующая граница не ограничивает выборку.
func (l *Ledger) FilterByDateRange(ctx context.Context, r domain.DateRange) ([]domain.OrderRecord, error) {
	records, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(records, r, l.loc), nil
}

// Filter применяет диапазон дат к уже загруженному журналу, сохраняя порядок.
func Filter(records []domain.OrderRecord, r domain.DateRange, loc *time.Location) []domain.OrderRecord {
	out := make([]domain.OrderRecord, 0, len(records))
	for _, rec := range records {
		if r.Contains(rec.Date, loc) {
			out = append(out, rec)
		}
	}
	return out
}

// DeleteByDates удаляет записи, чьи ключи входят в набор, и возвращает число удалённых.
// Несуществующие и повторяющиеся ключи игнорируются.
func (l *Ledger) DeleteByDates(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	targets := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		date, err := domain.ParseOrderKey(key)
		if err != nil {
			l.logger.WithField("key", key).Debug("skipping unparsable history key")
			continue
		}
		targets[domain.FormatOrderKey(date)] = struct{}{}
	}

	records, err := l.load(ctx)
	if err != nil {
		return 0, err
	}

	kept := records[:0]
	removed := 0
	for _, rec := range records {
		if _, ok := targets[rec.Key()]; ok {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	if removed == 0 {
		return 0, nil
	}

	sortNewestFirst(kept)
	if err := l.save(ctx, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Find ищет запись по ключу.
func (l *Ledger) Find(ctx context.Context, key string) (domain.OrderRecord, error) {
	date, err := domain.ParseOrderKey(key)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	records, err := l.load(ctx)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	for _, rec := range records {
		if rec.Date.Equal(date) {
			return rec, nil
		}
	}
	return domain.OrderRecord{}, domain.ErrOrderNotFound
}

// Last возвращает самый свежий заказ либо ErrNoOrders.
func (l *Ledger) Last(ctx context.Context) (domain.OrderRecord, error) {
	records, err := l.List(ctx)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	if len(records) == 0 {
		return domain.OrderRecord{}, domain.ErrNoOrders
	}
	return records[0], nil
}

// Latest возвращает момент последнего сохранения, нулевой для пустого журнала.
func (l *Ledger) Latest(ctx context.Context) (time.Time, error) {
	last, err := l.Last(ctx)
	if errors.Is(err, domain.ErrNoOrders) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return last.Date, nil
}

func (l *Ledger) load(ctx context.Context) ([]domain.OrderRecord, error) {
	raw, err := l.kv.Get(ctx, domain.KeyHistory)
	if errors.Is(err, domain.ErrKeyNotFound) {
		return []domain.OrderRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var records []domain.OrderRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if records == nil {
		records = []domain.OrderRecord{}
	}
	return records, nil
}

func (l *Ledger) save(ctx context.Context, records []domain.OrderRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := l.kv.Put(ctx, domain.KeyHistory, raw); err != nil {
		return fmt.Errorf("store history: %w", err)
	}
	return nil
}

func sortNewestFirst(records []domain.OrderRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
}
