package ux

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stockbook/internal/domain"
)

func TestTables(t *testing.T) {
	date := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		tab  Tabular
		want []string
	}{
		{"clients", ClientTable{{ID: 7, Name: "Acme", Email: "ops@acme.test"}}, []string{"7", "Acme", "", "ops@acme.test", ""}},
		{"products", ProductTable{{ID: 1, Code: "W-1", Name: "Widget", Price: 2.5, Stock: 40}}, []string{"1", "W-1", "Widget", "2.50", "40"}},
		{"warehouses", WarehouseTable{{ID: 3, Name: "North", Location: "Oslo"}}, []string{"3", "North", "Oslo"}},
		{
			"transaction total from items",
			TransactionTable{{
				ID: 9, Type: domain.TransactionSale, ClientID: 7, WarehouseID: 3, Date: date,
				Items: []domain.TransactionItem{{ProductID: 1, Quantity: 4, UnitPrice: 2.5}},
			}},
			[]string{"9", "sale", "2024-03-09", "7", "3", "1", "10.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := tt.tab.Rows()
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0])
			assert.Len(t, rows[0], len(tt.tab.Headers()))
		})
	}
}

func TestTablesThroughFormatters(t *testing.T) {
	products := ProductTable{{ID: 1, Code: "W-1", Name: "Widget", Price: 2.5, Stock: 40}}

	var text bytes.Buffer
	f, err := NewFormatter("text", &FormatterOptions{Writer: &text, NoColor: true})
	require.NoError(t, err)
	require.NoError(t, f.Format(products))
	assert.Contains(t, text.String(), "Widget")
	assert.Contains(t, text.String(), "PRICE")

	var js bytes.Buffer
	f, err = NewFormatter("json", &FormatterOptions{Writer: &js, Compact: true})
	require.NoError(t, err)
	require.NoError(t, f.Format(products))
	assert.True(t, strings.HasPrefix(js.String(), `[{"id":1,"code":"W-1"`), js.String())
}
