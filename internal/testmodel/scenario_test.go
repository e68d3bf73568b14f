package testmodel

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-lazyload/database"
	"github.com/gaborage/go-bricks-lazyload/lazyload"
	"github.com/gaborage/go-bricks-lazyload/lifecycle"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

const (
	qAllInvoices        = "SELECT id, customer_id, number FROM invoices ORDER BY id"
	qCustomerByID       = "SELECT id, name FROM customers WHERE id = $1"
	qCustomersByIDs     = "SELECT id, name FROM customers WHERE id IN ($1,$2) ORDER BY id"
	qInvoicesByCustomer = "SELECT id, customer_id, number FROM invoices WHERE customer_id = $1 ORDER BY id"
	qLineItemsByInvoice = "SELECT id, invoice_id, description, amount FROM invoice_line_items WHERE invoice_id = $1 ORDER BY id"
	qLineItemsByIDs     = "SELECT id, invoice_id, description, amount FROM invoice_line_items WHERE invoice_id IN ($1,$2,$3) ORDER BY id"
)

type harness struct {
	store       *Store
	mock        sqlmock.Sqlmock
	conn        *database.Connection
	interceptor *lazyload.Interceptor
	registry    *lazyload.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	log := logger.New("disabled", false)
	registry := lazyload.NewRegistry()
	interceptor := lazyload.New(log,
		lazyload.WithRegistry(registry),
		lazyload.WithTerminationHooks(lifecycle.New()),
		lazyload.WithFlushInterval(0),
	)
	conn := database.Wrap(database.FromDB(db, database.PostgreSQL, log), log, nil, interceptor)

	t.Cleanup(func() {
		interceptor.Close()
		_ = conn.Close()
	})

	return &harness{
		store:       NewStore(conn),
		mock:        mock,
		conn:        conn,
		interceptor: interceptor,
		registry:    registry,
	}
}

func (h *harness) expectInvoices() {
	h.mock.ExpectQuery(qAllInvoices).WillReturnRows(sqlmock.NewRows(invoiceColumns).
		AddRow(10, 1, "INV-10").
		AddRow(11, 1, "INV-11").
		AddRow(12, 2, "INV-12"))
}

func (h *harness) expectCustomer(id int64, name string) {
	h.mock.ExpectQuery(qCustomerByID).WithArgs(id).
		WillReturnRows(sqlmock.NewRows(customerColumns).AddRow(id, name))
}

func (h *harness) expectCustomerInvoices(customerID int64) {
	h.mock.ExpectQuery(qInvoicesByCustomer).WithArgs(customerID).
		WillReturnRows(sqlmock.NewRows(invoiceColumns).
			AddRow(10, customerID, "INV-10").
			AddRow(11, customerID, "INV-11").
			AddRow(12, customerID, "INV-12"))
}

func (h *harness) expectLineItems(invoiceID int64) {
	h.mock.ExpectQuery(qLineItemsByInvoice).WithArgs(invoiceID).
		WillReturnRows(sqlmock.NewRows(lineItemColumns).AddRow(invoiceID*10, invoiceID, "Widget", 250))
}

// sites maps "<property> from entity <entity>" to the sample count of the
// single site recorded for it.
func (h *harness) sites(t *testing.T) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, s := range h.interceptor.Runtimes().Snapshot() {
		idx := strings.Index(s.Location, "navigation property ")
		require.GreaterOrEqual(t, idx, 0, s.Location)
		key := s.Location[idx+len("navigation property "):]
		_, dup := out[key]
		require.False(t, dup, "one site per relation expected in these scenarios")
		out[key] = s.Count()
	}
	return out
}

func TestLazyParentReferencePerInvoice(t *testing.T) {
	h := newHarness(t)
	ctx := logger.WithLazyLoadCounter(context.Background())

	h.expectInvoices()
	h.expectCustomer(1, "Ada")
	h.expectCustomer(1, "Ada")
	h.expectCustomer(2, "Grace")

	invoices, err := h.store.Invoices(ctx)
	require.NoError(t, err)
	require.Len(t, invoices, 3)

	var names []string
	for _, inv := range invoices {
		c, err := inv.GetCustomer(ctx)
		require.NoError(t, err)
		names = append(names, c.Name)
	}

	assert.Equal(t, []string{"Ada", "Ada", "Grace"}, names)
	assert.Equal(t, map[string]int{"Customer from entity Invoice": 3}, h.sites(t))
	assert.Equal(t, int64(3), logger.GetLazyLoadCounter(ctx))
	assert.NoError(t, h.mock.ExpectationsWereMet())

	snap := h.interceptor.Runtimes().Snapshot()
	require.Len(t, snap, 1)
	assert.Contains(t, snap[0].Location, "scenario_test.go(")
}

func TestEagerCollectionRecordsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.expectCustomer(1, "Ada")
	h.expectCustomerInvoices(1)

	customer, err := h.store.Customer(ctx, 1, IncludeInvoices)
	require.NoError(t, err)

	invoices, err := customer.GetInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, invoices, 3)

	assert.Equal(t, 0, h.interceptor.Runtimes().Len())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestEagerReferenceRecordsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.expectInvoices()
	h.mock.ExpectQuery(qCustomersByIDs).WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows(customerColumns).AddRow(1, "Ada").AddRow(2, "Grace"))
	h.mock.ExpectQuery(qLineItemsByIDs).WithArgs(10, 11, 12).
		WillReturnRows(sqlmock.NewRows(lineItemColumns).AddRow(100, 10, "Widget", 250).AddRow(120, 12, "Gadget", 99))

	invoices, err := h.store.Invoices(ctx, IncludeCustomer, IncludeLineItems)
	require.NoError(t, err)

	for _, inv := range invoices {
		c, err := inv.GetCustomer(ctx)
		require.NoError(t, err)
		assert.Equal(t, inv.CustomerID, c.ID)
		_, err = inv.GetLineItems(ctx)
		require.NoError(t, err)
	}

	items, _ := invoices[1].GetLineItems(ctx)
	assert.Empty(t, items)
	assert.Equal(t, 0, h.interceptor.Runtimes().Len())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestExplicitLoadRecordsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.expectInvoices()
	h.expectCustomer(1, "Ada")
	h.expectCustomer(1, "Ada")
	h.expectCustomer(2, "Grace")

	invoices, err := h.store.Invoices(ctx)
	require.NoError(t, err)

	for _, inv := range invoices {
		require.NoError(t, h.store.LoadCustomer(ctx, inv))
		require.True(t, inv.Customer.IsLoaded())

		c, err := inv.GetCustomer(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, c.Name)
	}

	assert.Equal(t, 0, h.interceptor.Runtimes().Len())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestExplicitCollectionLoadRecordsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.expectCustomer(1, "Ada")
	h.expectCustomerInvoices(1)

	customer, err := h.store.Customer(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, h.store.LoadInvoices(ctx, customer))
	require.NoError(t, h.store.LoadInvoices(ctx, customer))

	invoices, err := customer.GetInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, invoices, 3)
	assert.Equal(t, 0, h.interceptor.Runtimes().Len())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestNestedDeferredLoads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.expectCustomer(1, "Ada")
	h.expectCustomerInvoices(1)
	for _, id := range []int64{10, 11, 12} {
		h.expectLineItems(id)
	}

	customer, err := h.store.Customer(ctx, 1)
	require.NoError(t, err)

	invoices, err := customer.GetInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	assert.Equal(t, map[string]int{"Invoices from entity Customer": 1}, h.sites(t))

	for i, inv := range invoices {
		items, err := inv.GetLineItems(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)

		assert.Equal(t, map[string]int{
			"Invoices from entity Customer": 1,
			"LineItems from entity Invoice": i + 1,
		}, h.sites(t))
	}

	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestSecondAccessDoesNotReload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.expectInvoices()
	h.expectCustomer(1, "Ada")

	invoices, err := h.store.Invoices(ctx)
	require.NoError(t, err)

	for range 2 {
		_, err := invoices[0].GetCustomer(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, map[string]int{"Customer from entity Invoice": 1}, h.sites(t))
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestFailedLazyLoadIsStillTimed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.expectInvoices()
	h.mock.ExpectQuery(qCustomerByID).WithArgs(1).WillReturnRows(sqlmock.NewRows(customerColumns))

	invoices, err := h.store.Invoices(ctx)
	require.NoError(t, err)

	_, err = invoices[0].GetCustomer(ctx)
	require.Error(t, err)
	assert.False(t, invoices[0].Customer.IsLoaded())
	assert.Equal(t, map[string]int{"Customer from entity Invoice": 1}, h.sites(t))
}

func TestDetachedInterceptorRecordsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.expectInvoices()
	h.expectCustomer(1, "Ada")

	invoices, err := h.store.Invoices(ctx)
	require.NoError(t, err)

	h.conn.RemoveInterceptor(h.interceptor)
	_, err = invoices[0].GetCustomer(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, h.interceptor.Runtimes().Len())
}

func TestDisposingRegisteredInterceptorClearsRegistry(t *testing.T) {
	h := newHarness(t)

	cur, ok := h.registry.Current()
	require.True(t, ok)
	assert.Same(t, h.interceptor, cur)

	h.interceptor.Close()
	_, ok = h.registry.Current()
	assert.False(t, ok)
}
