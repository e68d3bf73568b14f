package app

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/internal/testmodel"
)

// InvoiceView is one row of GET /demo/invoices.
type InvoiceView struct {
	ID        int64  `json:"id"`
	Number    string `json:"number"`
	Customer  string `json:"customer"`
	LineItems int    `json:"line_items"`
}

type demoHandlers struct {
	store *testmodel.Store
}

// registerDemoRoutes exposes the billing fixtures. ?mode=lazy (the default)
// resolves every relation through the proxies, one query per invoice and
// relation; ?mode=eager loads them with the root query.
func registerDemoRoutes(e *echo.Echo, db types.Interface) {
	h := &demoHandlers{store: testmodel.NewStore(db)}
	e.Group("/demo").GET("/invoices", h.invoices)
}

func (h *demoHandlers) invoices(c echo.Context) error {
	ctx := c.Request().Context()

	var includes []testmodel.Include
	switch mode := c.QueryParam("mode"); mode {
	case "", "lazy":
	case "eager":
		includes = []testmodel.Include{testmodel.IncludeCustomer, testmodel.IncludeLineItems}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown mode %q", mode))
	}

	invoices, err := h.store.Invoices(ctx, includes...)
	if err != nil {
		return err
	}

	views := make([]InvoiceView, 0, len(invoices))
	for _, inv := range invoices {
		customer, err := inv.GetCustomer(ctx)
		if err != nil {
			return err
		}
		items, err := inv.GetLineItems(ctx)
		if err != nil {
			return err
		}
		view := InvoiceView{ID: inv.ID, Number: inv.Number, LineItems: len(items)}
		if customer != nil {
			view.Customer = customer.Name
		}
		views = append(views, view)
	}
	return c.JSON(http.StatusOK, views)
}
