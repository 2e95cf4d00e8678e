package httpapi

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
	"github.com/vladislavdragonenkov/dairydesk/internal/money"
	"github.com/vladislavdragonenkov/dairydesk/internal/service/session"
)

// QuoteRequest — тело запросов расчёта и сохранения заказа.
// Количества принимаются как есть из полей ввода: числа или строки.
type QuoteRequest struct {
	Quantities map[string]json.RawMessage `json:"quantities"`
	Search     string                     `json:"search,omitempty"`
	Visible    []string                   `json:"visible,omitempty"`
}

func (q QuoteRequest) toSession() session.QuoteRequest {
	quantities := make(domain.Quantities, len(q.Quantities))
	for id, raw := range q.Quantities {
		if n := domain.QuantityFromJSON(raw); n > 0 {
			quantities[id] = n
		}
	}
	return session.QuoteRequest{
		Quantities: quantities,
		Search:     q.Search,
		Visible:    q.Visible,
	}
}

type QuoteResponse struct {
	Total        float64 `json:"total"`
	TotalDisplay string  `json:"total_display"`
	CrateCount   int     `json:"crate_count"`
}

func newQuoteResponse(totals domain.Totals) QuoteResponse {
	return QuoteResponse{
		Total:        totals.Total,
		TotalDisplay: money.Format(totals.Total),
		CrateCount:   totals.CrateCount,
	}
}

type SavedOrderResponse struct {
	Key          string             `json:"key"`
	Total        float64            `json:"total"`
	TotalDisplay string             `json:"total_display"`
	Items        []domain.OrderLine `json:"items"`
}

func newSavedOrderResponse(rec domain.OrderRecord) SavedOrderResponse {
	return SavedOrderResponse{
		Key:          rec.Key(),
		Total:        rec.Total,
		TotalDisplay: money.Format(rec.Total),
		Items:        rec.Items,
	}
}

type HistoryEntryResponse struct {
	Key          string             `json:"key"`
	Date         time.Time          `json:"date"`
	Total        float64            `json:"total"`
	TotalDisplay string             `json:"total_display"`
	CrateCount   int                `json:"crate_count"`
	Items        []domain.OrderLine `json:"items"`
}

func newHistoryResponse(entries []session.HistoryEntry, loc *time.Location) []HistoryEntryResponse {
	result := make([]HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		result = append(result, HistoryEntryResponse{
			Key:          entry.Record.Key(),
			Date:         entry.Record.Date.In(loc),
			Total:        entry.Record.Total,
			TotalDisplay: money.Format(entry.Record.Total),
			CrateCount:   entry.CrateCount,
			Items:        entry.Record.Items,
		})
	}
	return result
}

type DetailLineResponse struct {
	ProductID     string  `json:"id"`
	Name          string  `json:"name"`
	Resolved      bool    `json:"resolved"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	Amount        float64 `json:"amount"`
	AmountDisplay string  `json:"amount_display"`
}

type OrderDetailsResponse struct {
	Key          string               `json:"key"`
	Date         time.Time            `json:"date"`
	Total        float64              `json:"total"`
	TotalDisplay string               `json:"total_display"`
	Lines        []DetailLineResponse `json:"lines"`
}

func newOrderDetailsResponse(details session.OrderDetails) OrderDetailsResponse {
	lines := make([]DetailLineResponse, 0, len(details.Lines))
	for _, line := range details.Lines {
		lines = append(lines, DetailLineResponse{
			ProductID:     line.ProductID,
			Name:          line.Name,
			Resolved:      line.Resolved,
			Quantity:      line.Quantity,
			Price:         line.Price,
			Amount:        line.Amount,
			AmountDisplay: money.Format(line.Amount),
		})
	}
	return OrderDetailsResponse{
		Key:          details.Key,
		Date:         details.Date,
		Total:        details.Total,
		TotalDisplay: money.Format(details.Total),
		Lines:        lines,
	}
}

type LastOrderResponse struct {
	Quantities domain.Quantities `json:"quantities"`
}

type DeleteHistoryRequest struct {
	Dates []string `json:"dates"`
}

type DeleteHistoryResponse struct {
	Removed int `json:"removed"`
}

type ImportResponse struct {
	Products int `json:"products"`
	Orders   int `json:"orders"`
}

type ThemeRequest struct {
	Theme domain.Theme `json:"theme"`
}

type ThemeResponse struct {
	Theme domain.Theme `json:"theme"`
}
