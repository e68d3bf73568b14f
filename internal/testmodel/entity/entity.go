// Package entity holds the billing fixtures: customers own invoices, invoices
// own line items. Relations are lazy unless loaded eagerly or explicitly.
package entity

import "github.com/gaborage/go-bricks-lazyload/orm"

// Customer is the root of the fixture graph.
type Customer struct {
	ID       int64
	Name     string
	Invoices *orm.Collection[*Invoice]
}

// Invoice belongs to a customer.
type Invoice struct {
	ID         int64
	CustomerID int64
	Number     string
	Customer   *orm.Reference[*Customer]
	LineItems  *orm.Collection[*InvoiceLineItem]
}

// InvoiceLineItem belongs to an invoice.
type InvoiceLineItem struct {
	ID          int64
	InvoiceID   int64
	Description string
	Amount      int64
	Invoice     *orm.Reference[*Invoice]
}
