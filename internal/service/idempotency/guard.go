package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

const defaultKeyTTL = 24 * time.Hour

var panicResponseBody = []byte(`{"error":"internal error"}`)

// ErrRequestInProgress возвращается, пока первый запрос с тем же ключом не завершился.
var ErrRequestInProgress = errors.New("request with the same idempotency key is already processing")

// Response — ответ, который сохраняется под ключом и воспроизводится при повторе.
type Response struct {
	Status int
	Body   []byte
}

// Guard гарантирует, что повторная отправка "Save" с тем же Idempotency-Key
// не создаст вторую запись в истории, а вернёт первый ответ.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// NewGuard создаёт Guard. ttl <= 0 означает 24 часа.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = defaultKeyTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// HashRequest строит хэш запроса из операции и тела.
func HashRequest(operation string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(operation))
	sum.Write([]byte{0})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}

// Do выполняет handler один раз на ключ. replayed=true означает, что ответ
// взят из ранее сохранённой записи. Пустой ключ отключает защиту.
func (g *Guard) Do(key, requestHash string, handler func() Response) (resp Response, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if g == nil || g.repo == nil || key == "" {
		return handler(), false, nil
	}

	record, err := g.repo.CreateProcessing(key, requestHash, g.now().Add(g.ttl))
	if err != nil {
		resp, err := g.replay(record, err)
		return resp, err == nil, err
	}

	resp = g.run(key, handler)
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}

	store := g.repo.MarkDone
	if resp.Status >= http.StatusBadRequest {
		store = g.repo.MarkFailed
	}
	if storeErr := store(key, resp.Body, resp.Status); storeErr != nil {
		g.logger.WithError(storeErr).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}

	return resp, false, nil
}

// run вызывает handler; при панике ключ помечается failed с ответом 500,
// а паника передаётся дальше (её обрабатывает Recoverer роутера).
func (g *Guard) run(key string, handler func() Response) Response {
	defer func() {
		if p := recover(); p != nil {
			if err := g.repo.MarkFailed(key, panicResponseBody, http.StatusInternalServerError); err != nil {
				g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to release key after panic")
			}
			panic(p)
		}
	}()
	return handler()
}

func (g *Guard) replay(record domain.IdempotencyRecord, createErr error) (Response, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return Response{}, createErr
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			status := record.HTTPStatus
			if status == 0 {
				status = http.StatusOK
			}
			g.logger.WithFields(log.Fields{
				"idempotency_key": record.Key,
				"status":          status,
			}).Info("replaying stored response")
			return Response{Status: status, Body: record.ResponseBody}, nil
		case domain.IdempotencyStatusProcessing:
			return Response{}, ErrRequestInProgress
		default:
			return Response{}, fmt.Errorf("unknown idempotency record status %q", record.Status)
		}
	default:
		return Response{}, fmt.Errorf("create idempotency record: %w", createErr)
	}
}
