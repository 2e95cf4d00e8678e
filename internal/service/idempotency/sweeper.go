package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dairy_idempotency_sweeps_total",
		Help: "Sweeps of expired save-order keys grouped by result.",
	}, []string{"result"})
	sweptKeysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dairy_idempotency_swept_keys_total",
		Help: "Expired save-order keys removed by the sweeper.",
	})
)

// SweepConfig задаёт расписание очистки. Нулевые значения заменяются значениями по умолчанию.
type SweepConfig struct {
	Interval  time.Duration
	BatchSize int
	Logger    *log.Entry
	Now       func() time.Time
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.Logger == nil {
		c.Logger = log.WithField("component", "idempotency-sweeper")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Sweeper удаляет ключи Idempotency-Key, срок хранения которых истёк.
type Sweeper struct {
	repo domain.IdempotencyRepository
	cfg  SweepConfig
}

// NewSweeper создаёт очистку поверх того же хранилища, что использует Guard.
func NewSweeper(repo domain.IdempotencyRepository, cfg SweepConfig) *Sweeper {
	return &Sweeper{repo: repo, cfg: cfg.withDefaults()}
}

// Run выполняет Sweep сразу и затем раз в Interval, пока ctx не отменён.
func (s *Sweeper) Run(ctx context.Context) {
	if s.repo == nil {
		s.cfg.Logger.Warn("idempotency sweeper is disabled: no repository")
		return
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	removed, err := s.Sweep(ctx)
	switch {
	case errors.Is(err, context.Canceled):
	case err != nil:
		sweepRunsTotal.WithLabelValues("error").Inc()
		s.cfg.Logger.WithError(err).WithField("removed", removed).Warn("idempotency sweep failed")
	default:
		sweepRunsTotal.WithLabelValues("ok").Inc()
		if removed > 0 {
			s.cfg.Logger.WithField("removed", removed).Info("expired save-order keys removed")
		}
	}
}

// Sweep удаляет просроченные записи порциями по BatchSize, пока очередная
// порция не окажется неполной. Возвращает число удалённых записей.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	before := s.cfg.Now().UTC()
	removed := 0
	for {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		n, err := s.repo.DeleteExpired(before, s.cfg.BatchSize)
		removed += n
		sweptKeysTotal.Add(float64(n))
		if err != nil {
			return removed, err
		}
		if n < s.cfg.BatchSize {
			return removed, nil
		}
	}
}
