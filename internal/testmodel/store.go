// Package testmodel is a billing data set mapped with the orm package. It
// exercises lazy, eager and explicit loading end to end through the tracked
// connection and is used by tests and the demo command.
package testmodel

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/internal/testmodel/entity"
	"github.com/gaborage/go-bricks-lazyload/internal/testmodel/proxies"
	"github.com/gaborage/go-bricks-lazyload/orm"
)

// Include names a relation to load eagerly together with the root query.
type Include string

const (
	IncludeCustomer  Include = "Customer"
	IncludeInvoices  Include = "Invoices"
	IncludeLineItems Include = "LineItems"
)

const (
	tableCustomers = "customers"
	tableInvoices  = "invoices"
	tableLineItems = "invoice_line_items"
)

var (
	customerColumns = []string{"id", "name"}
	invoiceColumns  = []string{"id", "customer_id", "number"}
	lineItemColumns = []string{"id", "invoice_id", "description", "amount"}
)

// Store queries the billing tables and hands out proxies.
type Store struct {
	session *orm.Session
}

// NewStore creates a store issuing its statements through db.
func NewStore(db types.Interface) *Store {
	return &Store{session: orm.NewSession(db)}
}

// Customer returns one customer, with includes loaded eagerly.
func (s *Store) Customer(ctx context.Context, id int64, includes ...Include) (*proxies.CustomerProxy, error) {
	c, err := s.customerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if slices.Contains(includes, IncludeInvoices) {
		invoices, err := s.invoicesWhere(ctx, squirrel.Eq{"customer_id": id})
		if err != nil {
			return nil, err
		}
		c.Invoices.Set(invoices)
	}
	return proxies.NewCustomerProxy(c), nil
}

// Invoices returns every invoice ordered by id, with includes loaded eagerly.
func (s *Store) Invoices(ctx context.Context, includes ...Include) ([]*proxies.InvoiceProxy, error) {
	invoices, err := s.invoicesWhere(ctx, nil)
	if err != nil {
		return nil, err
	}

	if slices.Contains(includes, IncludeCustomer) && len(invoices) > 0 {
		if err := s.includeCustomers(ctx, invoices); err != nil {
			return nil, err
		}
	}
	if slices.Contains(includes, IncludeLineItems) && len(invoices) > 0 {
		if err := s.includeLineItems(ctx, invoices); err != nil {
			return nil, err
		}
	}

	out := make([]*proxies.InvoiceProxy, len(invoices))
	for i, inv := range invoices {
		out[i] = proxies.NewInvoiceProxy(inv)
	}
	return out, nil
}

// LoadCustomer loads the invoice's customer explicitly, outside any accessor.
func (s *Store) LoadCustomer(ctx context.Context, inv *proxies.InvoiceProxy) error {
	if inv.Customer.IsLoaded() {
		return nil
	}
	c, err := s.customerByID(ctx, inv.CustomerID)
	if err != nil {
		return err
	}
	inv.Customer.Set(c)
	return nil
}

// LoadInvoices loads the customer's invoices explicitly, outside any accessor.
func (s *Store) LoadInvoices(ctx context.Context, c *proxies.CustomerProxy) error {
	if c.Invoices.IsLoaded() {
		return nil
	}
	invoices, err := s.invoicesWhere(ctx, squirrel.Eq{"customer_id": c.ID})
	if err != nil {
		return err
	}
	c.Invoices.Set(invoices)
	return nil
}

func (s *Store) customerByID(ctx context.Context, id int64) (*entity.Customer, error) {
	c := &entity.Customer{}
	q := s.session.Select(customerColumns...).From(tableCustomers).Where(squirrel.Eq{"id": id})
	if err := s.session.One(ctx, q, &c.ID, &c.Name); err != nil {
		return nil, fmt.Errorf("load customer %d: %w", id, err)
	}
	s.attachCustomer(c)
	return c, nil
}

func (s *Store) invoiceByID(ctx context.Context, id int64) (*entity.Invoice, error) {
	inv := &entity.Invoice{}
	q := s.session.Select(invoiceColumns...).From(tableInvoices).Where(squirrel.Eq{"id": id})
	if err := s.session.One(ctx, q, &inv.ID, &inv.CustomerID, &inv.Number); err != nil {
		return nil, fmt.Errorf("load invoice %d: %w", id, err)
	}
	s.attachInvoice(inv)
	return inv, nil
}

func (s *Store) invoicesWhere(ctx context.Context, pred squirrel.Sqlizer) ([]*entity.Invoice, error) {
	q := s.session.Select(invoiceColumns...).From(tableInvoices).OrderBy("id")
	if pred != nil {
		q = q.Where(pred)
	}

	var invoices []*entity.Invoice
	err := s.session.All(ctx, q, func(rows *sql.Rows) error {
		inv := &entity.Invoice{}
		if err := rows.Scan(&inv.ID, &inv.CustomerID, &inv.Number); err != nil {
			return err
		}
		s.attachInvoice(inv)
		invoices = append(invoices, inv)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	return invoices, nil
}

func (s *Store) lineItemsWhere(ctx context.Context, pred squirrel.Sqlizer) ([]*entity.InvoiceLineItem, error) {
	q := s.session.Select(lineItemColumns...).From(tableLineItems).Where(pred).OrderBy("id")

	var items []*entity.InvoiceLineItem
	err := s.session.All(ctx, q, func(rows *sql.Rows) error {
		item := &entity.InvoiceLineItem{}
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Amount); err != nil {
			return err
		}
		s.attachLineItem(item)
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	return items, nil
}

func (s *Store) includeCustomers(ctx context.Context, invoices []*entity.Invoice) error {
	ids := make([]int64, 0, len(invoices))
	for _, inv := range invoices {
		if !slices.Contains(ids, inv.CustomerID) {
			ids = append(ids, inv.CustomerID)
		}
	}

	byID := make(map[int64]*entity.Customer, len(ids))
	q := s.session.Select(customerColumns...).From(tableCustomers).Where(squirrel.Eq{"id": ids}).OrderBy("id")
	err := s.session.All(ctx, q, func(rows *sql.Rows) error {
		c := &entity.Customer{}
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return err
		}
		s.attachCustomer(c)
		byID[c.ID] = c
		return nil
	})
	if err != nil {
		return fmt.Errorf("include customers: %w", err)
	}

	for _, inv := range invoices {
		inv.Customer.Set(byID[inv.CustomerID])
	}
	return nil
}

func (s *Store) includeLineItems(ctx context.Context, invoices []*entity.Invoice) error {
	ids := make([]int64, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}

	items, err := s.lineItemsWhere(ctx, squirrel.Eq{"invoice_id": ids})
	if err != nil {
		return err
	}

	byInvoice := make(map[int64][]*entity.InvoiceLineItem, len(invoices))
	for _, item := range items {
		byInvoice[item.InvoiceID] = append(byInvoice[item.InvoiceID], item)
	}
	for _, inv := range invoices {
		inv.LineItems.Set(byInvoice[inv.ID])
	}
	return nil
}

func (s *Store) attachCustomer(c *entity.Customer) {
	id := c.ID
	c.Invoices = orm.NewCollection(func(ctx context.Context) ([]*entity.Invoice, error) {
		return s.invoicesWhere(ctx, squirrel.Eq{"customer_id": id})
	})
}

func (s *Store) attachInvoice(inv *entity.Invoice) {
	id, customerID := inv.ID, inv.CustomerID
	inv.Customer = orm.NewReference(func(ctx context.Context) (*entity.Customer, error) {
		return s.customerByID(ctx, customerID)
	})
	inv.LineItems = orm.NewCollection(func(ctx context.Context) ([]*entity.InvoiceLineItem, error) {
		return s.lineItemsWhere(ctx, squirrel.Eq{"invoice_id": id})
	})
}

func (s *Store) attachLineItem(item *entity.InvoiceLineItem) {
	invoiceID := item.InvoiceID
	item.Invoice = orm.NewReference(func(ctx context.Context) (*entity.Invoice, error) {
		return s.invoiceByID(ctx, invoiceID)
	})
}
