package domain

import (
	"net/mail"
	"strings"
	"time"
)

// OrderStatus is a node of the order lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderPreparing OrderStatus = "preparing"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderPaid, OrderCancelled},
	OrderPaid:      {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderShipped},
	OrderShipped:   {OrderDelivered},
	OrderDelivered: {OrderRefunded},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderPreparing, OrderShipped, OrderDelivered, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a customer purchase.
type Order struct {
	ID            string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Address       string
	Status        OrderStatus
	TotalWon      int64
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem is one product line of an order, priced at order time.
type OrderItem struct {
	ProductID    string
	Title        string
	Quantity     int
	UnitPriceWon int64
}

// LineTotal is quantity times unit price.
func (i OrderItem) LineTotal() int64 {
	return int64(i.Quantity) * i.UnitPriceWon
}

// ComputeTotal sums every line.
func (o *Order) ComputeTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.LineTotal()
	}
	o.TotalWon = total
	return total
}

// MaxOrderQuantity bounds a single line.
const MaxOrderQuantity = 99

// Validate checks the customer fields and line quantities of a new order.
func (o *Order) Validate() error {
	errs := FieldErrors{}
	o.CustomerName = strings.TrimSpace(o.CustomerName)
	o.CustomerEmail = strings.TrimSpace(o.CustomerEmail)
	o.CustomerPhone = strings.TrimSpace(o.CustomerPhone)
	o.Address = strings.TrimSpace(o.Address)
	if o.CustomerName == "" {
		errs.Add("customer.name", "name is required")
	}
	if o.CustomerEmail == "" {
		errs.Add("customer.email", "email is required")
	} else if _, err := mail.ParseAddress(o.CustomerEmail); err != nil {
		errs.Add("customer.email", "email is invalid")
	}
	if o.Address == "" {
		errs.Add("customer.address", "address is required")
	}
	if len(o.Items) == 0 {
		errs.Add("items", "at least one item is required")
	}
	for _, item := range o.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			errs.Add("items", "product_id is required")
		}
		if item.Quantity < 1 || item.Quantity > MaxOrderQuantity {
			errs.Add("items", "quantity must be between 1 and 99")
		}
	}
	return errs.Err()
}
