package sync

import (
	"time"
)

// DocType тип документа на удаленном сервере
type DocType string

const (
	DocCustomer      DocType = "Customer"
	DocItem          DocType = "Item"
	DocItemGroup     DocType = "Item Group"
	DocBin           DocType = "Bin"
	DocItemPrice     DocType = "Item Price"
	DocPOSProfile    DocType = "POS Profile"
	DocPaymentMethod DocType = "POS Payment Method"
	DocQuotation     DocType = "Quotation"
	DocSalesOrder    DocType = "Sales Order"
	DocDeliveryNote  DocType = "Delivery Note"
	DocSalesInvoice  DocType = "Sales Invoice"
	DocPaymentEntry  DocType = "Payment Entry"
)

// Status статус синхронизации локальной записи
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSynced  Status = "SYNCED"
	StatusFailed  Status = "FAILED"
)

// Meta служебные поля синхронизации, общие для всех синхронизируемых сущностей
type Meta struct {
	LocalID        string     `json:"local_id"`
	RemoteName     string     `json:"name,omitempty"`
	RemoteModified string     `json:"modified,omitempty"`
	SyncStatus     Status     `json:"-"`
	IsDeleted      bool       `json:"-"`
	LastError      string     `json:"-"`
	CreatedAt      time.Time  `json:"-"`
	UpdatedAt      time.Time  `json:"-"`
	SyncedAt       *time.Time `json:"-"`
}

// SyncMeta позволяет обобщенному коду добраться до встроенной Meta
func (m *Meta) SyncMeta() *Meta {
	return m
}

// Syncable любая сущность со встроенной Meta
type Syncable interface {
	SyncMeta() *Meta
}

// Scope область данных одного тенанта
type Scope struct {
	InstanceID string
	CompanyID  string
}

// State состояние синхронизации одного типа документа
type State struct {
	InstanceID   string     `json:"instance_id"`
	CompanyID    string     `json:"company_id"`
	DocType      DocType    `json:"doc_type"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	LastPullAt   *time.Time `json:"last_pull_at,omitempty"`
	PendingCount int        `json:"pending_count"`
	FailedCount  int        `json:"failed_count"`
	InProgress   bool       `json:"in_progress"`
	LastError    string     `json:"last_error,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Session текущая открытая POS-сессия, из которой строится Context
type Session struct {
	InstanceID  string
	CompanyID   string
	ProfileID   string
	WarehouseID string
	TerritoryID string
	PriceList   string
	UserID      string
	OpenedAt    time.Time
}
