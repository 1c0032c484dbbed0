package ux

import (
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/stockbook/internal/domain"
)

// ClientTable renders clients.
type ClientTable []domain.Client

func (ClientTable) Headers() []string { return []string{"ID", "NAME", "DOCUMENT", "EMAIL", "PHONE"} }

func (t ClientTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, c := range t {
		rows = append(rows, []string{strconv.Itoa(c.ID), c.Name, c.Document, c.Email, c.Phone})
	}
	return rows
}

// ProductTable renders products.
type ProductTable []domain.Product

func (ProductTable) Headers() []string { return []string{"ID", "CODE", "NAME", "PRICE", "STOCK"} }

func (t ProductTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		rows = append(rows, []string{strconv.Itoa(p.ID), p.Code, p.Name, money(p.Price), strconv.Itoa(p.Stock)})
	}
	return rows
}

// WarehouseTable renders warehouses.
type WarehouseTable []domain.Warehouse

func (WarehouseTable) Headers() []string { return []string{"ID", "NAME", "LOCATION"} }

func (t WarehouseTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, w := range t {
		rows = append(rows, []string{strconv.Itoa(w.ID), w.Name, w.Location})
	}
	return rows
}

// TransactionTable renders transactions. A zero Total falls back to the
// sum of the items.
type TransactionTable []domain.Transaction

func (TransactionTable) Headers() []string {
	return []string{"ID", "TYPE", "DATE", "CLIENT", "WAREHOUSE", "ITEMS", "TOTAL"}
}

func (t TransactionTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, tx := range t {
		total := tx.Total
		if total == 0 {
			total = tx.ComputedTotal()
		}
		date := ""
		if !tx.Date.IsZero() {
			date = tx.Date.Format("2006-01-02")
		}
		rows = append(rows, []string{
			strconv.Itoa(tx.ID),
			string(tx.Type),
			date,
			strconv.Itoa(tx.ClientID),
			strconv.Itoa(tx.WarehouseID),
			strconv.Itoa(len(tx.Items)),
			money(total),
		})
	}
	return rows
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

var (
	_ Tabular = ClientTable(nil)
	_ Tabular = ProductTable(nil)
	_ Tabular = WarehouseTable(nil)
	_ Tabular = TransactionTable(nil)
)
