package sqlite

import (
	"possync/internal/domain/document"
	"possync/internal/domain/sync"
)

// Tables типизированные таблицы локальной базы
type Tables struct {
	Customers      *Table[document.Customer, *document.Customer]
	Items          *Table[document.Item, *document.Item]
	Categories     *Table[document.Category, *document.Category]
	Bins           *Table[document.Bin, *document.Bin]
	Prices         *Table[document.ItemPrice, *document.ItemPrice]
	Profiles       *Table[document.POSProfile, *document.POSProfile]
	PaymentMethods *Table[document.PaymentMethod, *document.PaymentMethod]
	Quotations     *Table[document.SalesDocument, *document.SalesDocument]
	SalesOrders    *Table[document.SalesDocument, *document.SalesDocument]
	DeliveryNotes  *Table[document.SalesDocument, *document.SalesDocument]
	Invoices       *Table[document.SalesDocument, *document.SalesDocument]
	Payments       *Table[document.PaymentEntry, *document.PaymentEntry]
}

func (s *Storage) Tables() Tables {
	return Tables{
		Customers:  NewTable[document.Customer](s, "customers", sync.DocCustomer),
		Items:      NewTable[document.Item](s, "items", sync.DocItem),
		Categories: NewTable[document.Category](s, "item_groups", sync.DocItemGroup),
		Bins: NewTable[document.Bin](s, "bins", sync.DocBin).
			WithParent(func(b *document.Bin) string { return b.Warehouse }),
		Prices: NewTable[document.ItemPrice](s, "item_prices", sync.DocItemPrice).
			WithParent(func(p *document.ItemPrice) string { return p.PriceList }),
		Profiles: NewTable[document.POSProfile](s, "pos_profiles", sync.DocPOSProfile),
		PaymentMethods: NewTable[document.PaymentMethod](s, "pos_payment_methods", sync.DocPaymentMethod).
			WithParent(func(p *document.PaymentMethod) string { return p.Parent }),
		Quotations:    NewTable[document.SalesDocument](s, "quotations", sync.DocQuotation).WithParent(customerOf),
		SalesOrders:   NewTable[document.SalesDocument](s, "sales_orders", sync.DocSalesOrder).WithParent(customerOf),
		DeliveryNotes: NewTable[document.SalesDocument](s, "delivery_notes", sync.DocDeliveryNote).WithParent(customerOf),
		Invoices:      NewTable[document.SalesDocument](s, "sales_invoices", sync.DocSalesInvoice).WithParent(customerOf),
		Payments: NewTable[document.PaymentEntry](s, "payment_entries", sync.DocPaymentEntry).
			WithParent(func(p *document.PaymentEntry) string { return p.Party }),
	}
}

func customerOf(d *document.SalesDocument) string {
	return d.Customer
}
