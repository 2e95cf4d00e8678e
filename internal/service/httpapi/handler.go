package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/analytics"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/catalog"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/idempotency"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/report"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/session"
)

const (
	// IdempotencyKeyHeader — заголовок, защищающий сохранение заказа от повторной отправки.
	IdempotencyKeyHeader = "Idempotency-Key"

	dateParamLayout  = "2006-01-02"
	maxBodyBytes     = 1 << 20
	maxBackupBytes   = 16 << 20
	saveOrderOpLabel = "POST /api/orders"
)

// Handler — HTTP JSON API рабочего места.
type Handler struct {
	desk   *session.Desk
	guard  *idempotency.Guard
	logger *log.Entry
	now    func() time.Time
}

// NewHandler создаёт обработчики API. guard может быть nil.
func NewHandler(desk *session.Desk, guard *idempotency.Guard, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{desk: desk, guard: guard, logger: logger, now: time.Now}
}

// Router возвращает chi-роутер со всеми маршрутами и middleware.
func (h *Handler) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(h.logger))
	router.Use(middleware.Recoverer)

	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes регистрирует маршруты /api.
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/api", func(r chi.Router) {
		r.Get("/products", h.handleListProducts)
		r.Post("/products", h.handleAddProduct)
		r.Put("/products/{id}", h.handleUpdateProduct)
		r.Delete("/products/{id}", h.handleRemoveProduct)

		r.Post("/orders/quote", h.handleQuote)
		r.Post("/orders", h.handleSaveOrder)
		r.Get("/orders", h.handleHistory)
		r.Get("/orders/last", h.handleLastOrder)
		r.Get("/orders/{date}", h.handleOrderDetails)
		r.Delete("/orders", h.handleDeleteHistory)

		r.Get("/analytics", h.handleAnalytics)
		r.Get("/reports/rows", h.handleReportRows)
		r.Get("/reports/csv", h.handleReportCSV)

		r.Get("/backup", h.handleExport)
		r.Post("/backup", h.handleImport)
		r.Get("/theme", h.handleGetTheme)
		r.Put("/theme", h.handleSetTheme)
	})
}

func (h *Handler) handleListProducts(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, h.desk.Products())
}

func (h *Handler) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var draft catalog.Draft
	if !h.decode(w, r, &draft) {
		return
	}

	product, err := h.desk.AddProduct(r.Context(), draft)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, product)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var draft catalog.Draft
	if !h.decode(w, r, &draft) {
		return
	}

	product, err := h.desk.UpdateProduct(r.Context(), chi.URLParam(r, "id"), draft)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *Handler) handleRemoveProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.desk.RemoveProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	respondWithJSON(w, http.StatusOK, newQuoteResponse(h.desk.Quote(req.toSession())))
}

// handleSaveOrder сохраняет заказ. Повтор с тем же Idempotency-Key и телом
// возвращает первый ответ без новой записи в истории.
func (h *Handler) handleSaveOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req QuoteRequest
	if err := decodeStrict(bytes.NewReader(body), &req); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid request payload: %v", err))
		return
	}

	key := r.Header.Get(IdempotencyKeyHeader)
	resp, replayed, err := h.guard.Do(key, idempotency.HashRequest(saveOrderOpLabel, body), func() idempotency.Response {
		record, err := h.desk.SaveOrder(r.Context(), req.toSession())
		if err != nil {
			code, payload := errorPayload(err)
			if code >= http.StatusInternalServerError {
				h.logger.WithError(err).Error("failed to save order")
			}
			return h.encodeResponse(code, payload)
		}
		return h.encodeResponse(http.StatusCreated, newSavedOrderResponse(record))
	})
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	if replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeRaw(w, resp.Status, resp.Body)
}

func (h *Handler) encodeResponse(code int, payload any) idempotency.Response {
	body, err := encodeJSON(payload)
	if err != nil {
		h.logger.WithError(err).Error("failed to marshal JSON response")
		return idempotency.Response{
			Status: http.StatusInternalServerError,
			Body:   []byte(`{"error":"failed to marshal JSON response"}`),
		}
	}
	return idempotency.Response{Status: code, Body: body}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	dateRange, err := h.parseDateRange(r)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	entries, err := h.desk.History(r.Context(), dateRange)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newHistoryResponse(entries, h.desk.Location()))
}

func (h *Handler) handleLastOrder(w http.ResponseWriter, r *http.Request) {
	quantities, err := h.desk.LastOrderQuantities(r.Context())
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, LastOrderResponse{Quantities: quantities})
}

func (h *Handler) handleOrderDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.desk.OrderDetails(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newOrderDetailsResponse(details))
}

func (h *Handler) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	var req DeleteHistoryRequest
	if !h.decode(w, r, &req) {
		return
	}

	removed, err := h.desk.DeleteHistory(r.Context(), req.Dates)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, DeleteHistoryResponse{Removed: removed})
}

// handleAnalytics строит отчёт за month=YYYY-MM; без параметра берётся текущий месяц.
func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	year, month, _ := h.now().In(h.desk.Location()).Date()
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		var err error
		year, month, err = analytics.ParseMonth(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rep, ok, err := h.desk.Analytics(r.Context(), year, month)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	if !ok {
		respondWithJSON(w, http.StatusOK, noticeResponse{Notice: "no data for selected month"})
		return
	}
	respondWithJSON(w, http.StatusOK, rep)
}

func (h *Handler) handleReportRows(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.reportRows(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleReportCSV(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.reportRows(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rows); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	filename := fmt.Sprintf("dairy_history_%s.csv", h.now().In(h.desk.Location()).Format(dateParamLayout))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.WithError(err).Warn("failed to write csv report")
	}
}

func (h *Handler) reportRows(w http.ResponseWriter, r *http.Request) ([]report.Row, bool) {
	dateRange, err := h.parseDateRange(r)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return nil, false
	}

	rows, err := h.desk.ReportRows(r.Context(), dateRange)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return nil, false
	}
	return rows, true
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	backup, err := h.desk.Export(r.Context())
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	body, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}

	filename := fmt.Sprintf("dairydesk_backup_%s.json", h.now().UTC().Format(dateParamLayout))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	writeRaw(w, http.StatusOK, body)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBackupBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read backup file")
		return
	}

	backup, err := h.desk.Import(r.Context(), raw)
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ImportResponse{Products: len(backup.Products), Orders: len(backup.History)})
}

func (h *Handler) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.desk.Theme(r.Context())
	if err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ThemeResponse{Theme: theme})
}

func (h *Handler) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.desk.SetTheme(r.Context(), req.Theme); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ThemeResponse(req))
}

// parseDateRange читает from/to (YYYY-MM-DD) в зоне рабочего места.
func (h *Handler) parseDateRange(r *http.Request) (domain.DateRange, error) {
	var dateRange domain.DateRange
	query := r.URL.Query()
	for _, param := range []struct {
		name   string
		target *time.Time
	}{
		{name: "from", target: &dateRange.From},
		{name: "to", target: &dateRange.To},
	} {
		raw := strings.TrimSpace(query.Get(param.name))
		if raw == "" {
			continue
		}
		parsed, err := time.ParseInLocation(dateParamLayout, raw, h.desk.Location())
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("%w: %s=%q", domain.ErrOrderDateInvalid, param.name, raw)
		}
		*param.target = parsed
	}
	return dateRange, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	err := decodeStrict(http.MaxBytesReader(w, r.Body, maxBodyBytes), target)
	switch {
	case err == nil:
		return true
	case domain.IsValidation(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid request payload: %v", err))
	}
	return false
}

func decodeStrict(r io.Reader, target any) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

// requestLogger пишет в logrus строку на каждый запрос.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
			}).Debug("http request")
		})
	}
}
