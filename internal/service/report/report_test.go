package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/dairydesk/internal/domain"
)

func TestBuild_RowShape(t *testing.T) {
	products := []domain.Product{{ID: "A", Name: "Milk", Size: "1L", Price: 99}}
	newer := domain.NewOrderRecord(time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC), []domain.OrderLine{
		{ProductID: "A", Price: 10, Quantity: 2},
		{ProductID: "gone", Price: 5, Quantity: 1},
	})
	older := domain.NewOrderRecord(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), []domain.OrderLine{
		{ProductID: "A", Price: 12, Quantity: 1},
	})

	rows := Build([]domain.OrderRecord{newer, older}, products, time.UTC)
	require.Len(t, rows, 6)

	require.Equal(t, RowOrder, rows[0].Kind)
	require.Equal(t, newer.Key(), rows[0].OrderKey)
	require.Equal(t, 25.0, rows[0].Total)

	require.Equal(t, RowItem, rows[1].Kind)
	require.Equal(t, "Milk 1L", rows[1].Label)
	require.Equal(t, 10.0, rows[1].UnitPrice, "snapshot price, not catalog price")
	require.Equal(t, 20.0, rows[1].LineTotal)

	require.Equal(t, domain.UnknownProductLabel, rows[2].Label)
	require.Equal(t, domain.UnknownProductLabel, rows[2].Name)
	require.Empty(t, rows[2].Size)

	require.Equal(t, RowOrder, rows[3].Kind)
	require.Equal(t, RowItem, rows[4].Kind)

	require.Equal(t, RowGrandTotal, rows[5].Kind)
	require.Equal(t, 37.0, rows[5].Total)
}

func TestBuild_EmptySliceStillHasGrandTotal(t *testing.T) {
	rows := Build(nil, nil, time.UTC)
	require.Len(t, rows, 1)
	require.Equal(t, RowGrandTotal, rows[0].Kind)
}

func TestRow_JSONOmitsDateOnGrandTotal(t *testing.T) {
	rec := domain.NewOrderRecord(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), []domain.OrderLine{
		{ProductID: "A", Price: 10, Quantity: 1},
	})
	rows := Build([]domain.OrderRecord{rec}, nil, time.UTC)

	var decoded []map[string]any
	raw, err := json.Marshal(rows)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &decoded))

	last := decoded[len(decoded)-1]
	require.Equal(t, string(RowGrandTotal), last["kind"])
	require.NotContains(t, last, "date")
	require.Equal(t, "2024-05-01T08:00:00Z", decoded[0]["date"])
}

func TestWriteCSV(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	products := []domain.Product{{ID: "A", Name: "Gold Milk", Size: "500ml"}}
	rec := domain.NewOrderRecord(time.Date(2024, 5, 1, 3, 0, 5, 0, time.UTC), []domain.OrderLine{
		{ProductID: "A", Price: 33.5, Quantity: 3},
		{ProductID: "gone", Price: 10, Quantity: 1},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Build([]domain.OrderRecord{rec}, products, loc)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, []string{
		"Date,Time,Product Name,Size,Price,Quantity,Item Total,Order Total",
		"01/05/2024,08:30:05,Gold Milk,500ml,33.50,3,100.50,110.50",
		"01/05/2024,08:30:05,Unknown,,10.00,1,10.00,110.50",
	}, lines)
}
