package testmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/orm"
)

// columnTypes maps the portable column kinds used below to vendor DDL.
var columnTypes = map[string]map[string]string{
	types.PostgreSQL: {"id": "BIGINT", "text": "VARCHAR(255)", "amount": "BIGINT"},
	types.Oracle:     {"id": "NUMBER(19)", "text": "VARCHAR2(255)", "amount": "NUMBER(19)"},
}

type column struct{ name, kind string }

var tables = []struct {
	name    string
	columns []column
}{
	{tableCustomers, []column{{"id", "id"}, {"name", "text"}}},
	{tableInvoices, []column{{"id", "id"}, {"customer_id", "id"}, {"number", "text"}}},
	{tableLineItems, []column{{"id", "id"}, {"invoice_id", "id"}, {"description", "text"}, {"amount", "amount"}}},
}

// CreateSchema creates the billing tables. It fails if they already exist.
func CreateSchema(ctx context.Context, db types.Interface) error {
	vendor := db.DatabaseType()
	kinds, ok := columnTypes[vendor]
	if !ok {
		return fmt.Errorf("no schema for database type %q", vendor)
	}

	for _, t := range tables {
		defs := make([]string, len(t.columns))
		for i, c := range t.columns {
			defs[i] = orm.QuoteIdentifier(vendor, c.name) + " " + kinds[c.kind]
			if c.name == "id" {
				defs[i] += " PRIMARY KEY"
			}
		}
		ddl := fmt.Sprintf("CREATE TABLE %s (%s)", t.name, strings.Join(defs, ", "))
		if _, err := db.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}
	return nil
}

// Seed inserts the given number of customers, each owning perCustomer
// invoices with perInvoice line items. Ids start at 1 in every table.
func Seed(ctx context.Context, db types.Interface, customers, perCustomer, perInvoice int) error {
	s := orm.NewSession(db)
	var invoiceID, itemID int64

	for c := int64(1); c <= int64(customers); c++ {
		if _, err := s.Exec(ctx, s.Insert(tableCustomers, customerColumns...).
			Values(c, fmt.Sprintf("Customer %d", c))); err != nil {
			return fmt.Errorf("seed customer %d: %w", c, err)
		}

		for range perCustomer {
			invoiceID++
			if _, err := s.Exec(ctx, s.Insert(tableInvoices, invoiceColumns...).
				Values(invoiceID, c, fmt.Sprintf("INV-%05d", invoiceID))); err != nil {
				return fmt.Errorf("seed invoice %d: %w", invoiceID, err)
			}

			for range perInvoice {
				itemID++
				if _, err := s.Exec(ctx, s.Insert(tableLineItems, lineItemColumns...).
					Values(itemID, invoiceID, fmt.Sprintf("Item %d", itemID), itemID*100)); err != nil {
					return fmt.Errorf("seed line item %d: %w", itemID, err)
				}
			}
		}
	}
	return nil
}
