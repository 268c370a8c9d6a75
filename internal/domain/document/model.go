package document

import (
	"github.com/shopspring/decimal"

	"possync/internal/domain/sync"
)

// Customer клиент; может быть создан офлайн
type Customer struct {
	sync.Meta
	CustomerName  string `json:"customer_name"`
	CustomerGroup string `json:"customer_group,omitempty"`
	Territory     string `json:"territory,omitempty"`
	MobileNo      string `json:"mobile_no,omitempty"`
	EmailID       string `json:"email_id,omitempty"`
	TaxID         string `json:"tax_id,omitempty"`
	Company       string `json:"company,omitempty"`
}

// Item позиция каталога
type Item struct {
	sync.Meta
	ItemCode     string          `json:"item_code"`
	ItemName     string          `json:"item_name"`
	ItemGroup    string          `json:"item_group,omitempty"`
	StockUOM     string          `json:"stock_uom,omitempty"`
	StandardRate decimal.Decimal `json:"standard_rate"`
	Description  string          `json:"description,omitempty"`
	Image        string          `json:"image,omitempty"`
	Disabled     int             `json:"disabled,omitempty"`
	IsStockItem  int             `json:"is_stock_item,omitempty"`
}

// Category группа товаров (Item Group)
type Category struct {
	sync.Meta
	ItemGroupName   string `json:"item_group_name"`
	ParentItemGroup string `json:"parent_item_group,omitempty"`
	IsGroup         int    `json:"is_group,omitempty"`
}

// Bin остаток товара на складе
type Bin struct {
	sync.Meta
	ItemCode     string          `json:"item_code"`
	Warehouse    string          `json:"warehouse"`
	ActualQty    decimal.Decimal `json:"actual_qty"`
	ReservedQty  decimal.Decimal `json:"reserved_qty"`
	ProjectedQty decimal.Decimal `json:"projected_qty"`
}

// ItemPrice цена товара в прайс-листе
type ItemPrice struct {
	sync.Meta
	ItemCode      string          `json:"item_code"`
	PriceList     string          `json:"price_list"`
	PriceListRate decimal.Decimal `json:"price_list_rate"`
	Currency      string          `json:"currency,omitempty"`
	UOM           string          `json:"uom,omitempty"`
}

// POSProfile профиль кассы
type POSProfile struct {
	sync.Meta
	Company          string          `json:"company"`
	Warehouse        string          `json:"warehouse,omitempty"`
	SellingPriceList string          `json:"selling_price_list,omitempty"`
	Currency         string          `json:"currency,omitempty"`
	Customer         string          `json:"customer,omitempty"`
	Disabled         int             `json:"disabled,omitempty"`
	Payments         []PaymentMethod `json:"payments,omitempty"`
}

// PaymentMethod способ оплаты профиля (дочерняя таблица POS Profile)
type PaymentMethod struct {
	sync.Meta
	Parent         string `json:"parent"`
	ModeOfPayment  string `json:"mode_of_payment"`
	Default        int    `json:"default,omitempty"`
	AllowInReturns int    `json:"allow_in_returns,omitempty"`
}

// Line строка торгового документа
type Line struct {
	ItemCode  string          `json:"item_code"`
	ItemName  string          `json:"item_name,omitempty"`
	Qty       decimal.Decimal `json:"qty"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
	UOM       string          `json:"uom,omitempty"`
	Warehouse string          `json:"warehouse,omitempty"`
}

// SalesDocument общая форма для Quotation, Sales Order, Delivery Note и Sales Invoice.
// AgainstLocalID ссылается на локальный документ-основание; Against заполняется его
// именем на сервере перед отправкой.
type SalesDocument struct {
	sync.Meta
	Customer          string          `json:"customer"`
	CustomerLocalID   string          `json:"customer_local_id,omitempty"`
	Company           string          `json:"company"`
	PostingDate       string          `json:"posting_date"`
	DueDate           string          `json:"due_date,omitempty"`
	Warehouse         string          `json:"set_warehouse,omitempty"`
	PriceList         string          `json:"selling_price_list,omitempty"`
	Currency          string          `json:"currency,omitempty"`
	POSProfile        string          `json:"pos_profile,omitempty"`
	IsPOS             int             `json:"is_pos,omitempty"`
	AgainstLocalID    string          `json:"against_local_id,omitempty"`
	Against           string          `json:"against,omitempty"`
	Items             []Line          `json:"items"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	Status            string          `json:"status,omitempty"`
	DocStatus         int             `json:"docstatus"`
}

// Recalculate пересчитывает суммы строк и итог
func (d *SalesDocument) Recalculate() {
	total := decimal.Zero
	for i := range d.Items {
		d.Items[i].Amount = d.Items[i].Qty.Mul(d.Items[i].Rate).Round(2)
		total = total.Add(d.Items[i].Amount)
	}
	d.GrandTotal = total
	d.OutstandingAmount = total
}

// PaymentEntry оплата по счету
type PaymentEntry struct {
	sync.Meta
	PaymentType           string          `json:"payment_type"`
	PartyType             string          `json:"party_type"`
	Party                 string          `json:"party"`
	PartyLocalID          string          `json:"party_local_id,omitempty"`
	Company               string          `json:"company"`
	PostingDate           string          `json:"posting_date"`
	ModeOfPayment         string          `json:"mode_of_payment"`
	PaidAmount            decimal.Decimal `json:"paid_amount"`
	ReferenceNo           string          `json:"reference_no,omitempty"`
	AgainstInvoiceLocalID string          `json:"against_invoice_local_id,omitempty"`
	AgainstInvoice        string          `json:"against_invoice,omitempty"`
	DocStatus             int             `json:"docstatus"`
}
