package domain

import "time"

// Client is a customer or supplier account in the ledger.
type Client struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// Product is a stock-keeping unit.
type Product struct {
	ID         int     `json:"id"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	CategoryID int     `json:"category_id,omitempty"`
	Price      float64 `json:"price"`
	Stock      int     `json:"stock"`
}

// Warehouse is a physical stock location.
type Warehouse struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// TransactionType distinguishes stock-in from stock-out movements.
type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionSale     TransactionType = "sale"
)

// TransactionItem is one line of a purchase or sale.
type TransactionItem struct {
	ProductID int     `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Subtotal is quantity times unit price.
func (i TransactionItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// Transaction is a recorded purchase or sale.
type Transaction struct {
	ID          int               `json:"id"`
	Type        TransactionType   `json:"type"`
	ClientID    int               `json:"client_id"`
	WarehouseID int               `json:"warehouse_id"`
	Date        time.Time         `json:"date"`
	Items       []TransactionItem `json:"items,omitempty"`
	Total       float64           `json:"total"`
}

// ComputedTotal sums the item subtotals.
func (t Transaction) ComputedTotal() float64 {
	var sum float64
	for _, it := range t.Items {
		sum += it.Subtotal()
	}
	return sum
}
