// Package proxies contains the lazy-loading proxies of the billing entities.
// Navigation properties are reached through Get* accessors, which is what the
// lazy-load interceptor recognizes on the call stack.
package proxies

import (
	"context"

	"github.com/gaborage/go-bricks-lazyload/internal/testmodel/entity"
)

// CustomerProxy wraps a Customer.
type CustomerProxy struct {
	*entity.Customer
}

// InvoiceProxy wraps an Invoice.
type InvoiceProxy struct {
	*entity.Invoice
}

// InvoiceLineItemProxy wraps an InvoiceLineItem.
type InvoiceLineItemProxy struct {
	*entity.InvoiceLineItem
}

func NewCustomerProxy(c *entity.Customer) *CustomerProxy {
	if c == nil {
		return nil
	}
	return &CustomerProxy{Customer: c}
}

func NewInvoiceProxy(inv *entity.Invoice) *InvoiceProxy {
	if inv == nil {
		return nil
	}
	return &InvoiceProxy{Invoice: inv}
}

func NewInvoiceLineItemProxy(item *entity.InvoiceLineItem) *InvoiceLineItemProxy {
	if item == nil {
		return nil
	}
	return &InvoiceLineItemProxy{InvoiceLineItem: item}
}

// GetInvoices returns the customer's invoices, loading them on first access.
func (p *CustomerProxy) GetInvoices(ctx context.Context) ([]*InvoiceProxy, error) {
	invoices, err := p.Invoices.Get(ctx)
	if err != nil {
		return nil, err
	}
	return wrapAll(invoices, NewInvoiceProxy), nil
}

// GetCustomer returns the owning customer, loading it on first access.
func (p *InvoiceProxy) GetCustomer(ctx context.Context) (*CustomerProxy, error) {
	c, err := p.Customer.Get(ctx)
	if err != nil {
		return nil, err
	}
	return NewCustomerProxy(c), nil
}

// GetLineItems returns the invoice's line items, loading them on first access.
func (p *InvoiceProxy) GetLineItems(ctx context.Context) ([]*InvoiceLineItemProxy, error) {
	items, err := p.LineItems.Get(ctx)
	if err != nil {
		return nil, err
	}
	return wrapAll(items, NewInvoiceLineItemProxy), nil
}

// GetInvoice returns the owning invoice, loading it on first access.
func (p *InvoiceLineItemProxy) GetInvoice(ctx context.Context) (*InvoiceProxy, error) {
	inv, err := p.Invoice.Get(ctx)
	if err != nil {
		return nil, err
	}
	return NewInvoiceProxy(inv), nil
}

func wrapAll[E any, P any](items []E, wrap func(E) P) []P {
	out := make([]P, len(items))
	for i, item := range items {
		out[i] = wrap(item)
	}
	return out
}
