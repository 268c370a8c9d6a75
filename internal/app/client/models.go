package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"

	"possync/internal/domain/document"
	"possync/internal/domain/sync"
	"possync/internal/infrastructure/storage/sqlite"
)

const dateLayout = "2006-01-02"

// OpenSessionRequest открытие кассовой смены
type OpenSessionRequest struct {
	ProfileID   string
	TerritoryID string
}

type CreateCustomerRequest struct {
	Name      string
	Group     string
	Territory string
	Mobile    string
	Email     string
	TaxID     string
}

type LineRequest struct {
	ItemCode string
	Qty      decimal.Decimal
	// Rate нулевой: цена берется из прайс-листа смены или из карточки товара
	Rate decimal.Decimal
}

type CreateInvoiceRequest struct {
	// Customer имя клиента на сервере; CustomerLocalID клиент, созданный офлайн
	Customer        string
	CustomerLocalID string
	AgainstLocalID  string
	PostingDate     time.Time
	Lines           []LineRequest
	// ModeOfPayment непустой: вместе со счетом создается оплата на полную сумму
	ModeOfPayment string
}

// InvoiceResult созданные офлайн документы
type InvoiceResult struct {
	Invoice *document.SalesDocument
	Payment *document.PaymentEntry
}

// OpenSession открывает смену, если гейт открытия пропускает профиль
func (a *App) OpenSession(ctx context.Context, req OpenSessionRequest) (sync.GateResult, *sync.Session, error) {
	if strings.TrimSpace(req.ProfileID) == "" {
		return sync.GateResult{}, nil, fmt.Errorf("профиль не указан")
	}

	gate := a.EnsureOpening(ctx, req.ProfileID)
	if !gate.IsReady() {
		return gate, nil, nil
	}

	sc, err := a.gateContexts.Build(ctx)
	if err != nil {
		return gate, nil, err
	}
	if !sc.Available() {
		return sync.Pending(sync.ErrContextUnavailable.Error()), nil, nil
	}

	profile, err := a.tables.Profiles.GetByRemoteName(ctx, sc.Scope(), req.ProfileID)
	if errors.Is(err, sqlite.ErrNotFound) {
		return gate, nil, fmt.Errorf("%w: %s", ErrProfileNotFound, req.ProfileID)
	}
	if err != nil {
		return gate, nil, err
	}

	var userID string
	if tokens, err := a.tokens.Load(ctx); err == nil && tokens != nil {
		userID = tokens.UserID
	}

	company := profile.Company
	if company == "" {
		company = sc.CompanyID
	}
	s := sync.Session{
		InstanceID:  sc.InstanceID,
		CompanyID:   company,
		ProfileID:   req.ProfileID,
		WarehouseID: profile.Warehouse,
		TerritoryID: req.TerritoryID,
		PriceList:   profile.SellingPriceList,
		UserID:      userID,
		OpenedAt:    time.Now().UTC(),
	}
	if err := a.sessions.Open(ctx, s); err != nil {
		return gate, nil, err
	}

	a.log.Info("Смена открыта", slog.String("profile", req.ProfileID), slog.String("company", company))
	return gate, &s, nil
}

// Profiles профили кассы из локального кэша
func (a *App) Profiles(ctx context.Context) ([]*document.POSProfile, error) {
	sc, err := a.gateContexts.Build(ctx)
	if err != nil {
		return nil, err
	}
	if !sc.Available() {
		return nil, sync.ErrContextUnavailable
	}
	return a.tables.Profiles.List(ctx, sc.Scope())
}

// CreateCustomer сохраняет клиента локально; отправка через очередь
func (a *App) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*document.Customer, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("имя клиента не может быть пустым")
	}

	sess, err := a.requireSession(ctx)
	if err != nil {
		return nil, err
	}

	territory := req.Territory
	if territory == "" {
		territory = sess.TerritoryID
	}
	c := &document.Customer{
		CustomerName:  req.Name,
		CustomerGroup: req.Group,
		Territory:     territory,
		MobileNo:      req.Mobile,
		EmailID:       req.Email,
		TaxID:         req.TaxID,
		Company:       sess.CompanyID,
	}
	if err := a.tables.Customers.Insert(ctx, scopeOf(sess), c); err != nil {
		return nil, err
	}

	a.log.Info("Клиент создан локально", slog.String("local_id", c.LocalID))
	return c, nil
}

// CreateInvoice сохраняет счет (и оплату) локально; отправка через очередь
func (a *App) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (InvoiceResult, error) {
	if req.Customer == "" && req.CustomerLocalID == "" {
		return InvoiceResult{}, fmt.Errorf("клиент не указан")
	}
	if len(req.Lines) == 0 {
		return InvoiceResult{}, fmt.Errorf("счет без строк")
	}

	sess, err := a.requireSession(ctx)
	if err != nil {
		return InvoiceResult{}, err
	}
	scope := scopeOf(sess)

	posting := req.PostingDate
	if posting.IsZero() {
		posting = time.Now()
	}

	lines, err := a.buildLines(ctx, sess, req.Lines)
	if err != nil {
		return InvoiceResult{}, err
	}

	inv := &document.SalesDocument{
		Customer:        req.Customer,
		CustomerLocalID: req.CustomerLocalID,
		Company:         sess.CompanyID,
		PostingDate:     posting.Format(dateLayout),
		DueDate:         posting.Format(dateLayout),
		Warehouse:       sess.WarehouseID,
		PriceList:       sess.PriceList,
		POSProfile:      sess.ProfileID,
		IsPOS:           1,
		AgainstLocalID:  req.AgainstLocalID,
		Items:           lines,
		DocStatus:       1,
	}
	inv.Recalculate()

	if err := a.tables.Invoices.Insert(ctx, scope, inv); err != nil {
		return InvoiceResult{}, err
	}
	result := InvoiceResult{Invoice: inv}

	if req.ModeOfPayment != "" {
		pe := &document.PaymentEntry{
			PaymentType:           "Receive",
			PartyType:             "Customer",
			Party:                 req.Customer,
			PartyLocalID:          req.CustomerLocalID,
			Company:               sess.CompanyID,
			PostingDate:           inv.PostingDate,
			ModeOfPayment:         req.ModeOfPayment,
			PaidAmount:            inv.GrandTotal,
			AgainstInvoiceLocalID: inv.LocalID,
			DocStatus:             1,
		}
		if err := a.tables.Payments.Insert(ctx, scope, pe); err != nil {
			return result, err
		}
		result.Payment = pe
	}

	a.log.Info("Счет создан локально",
		slog.String("local_id", inv.LocalID),
		slog.String("total", inv.GrandTotal.StringFixed(2)),
	)
	return result, nil
}

func (a *App) buildLines(ctx context.Context, sess *sync.Session, reqs []LineRequest) ([]document.Line, error) {
	scope := scopeOf(sess)

	prices := map[string]decimal.Decimal{}
	if sess.PriceList != "" {
		list, err := a.tables.Prices.ListByParent(ctx, scope, sess.PriceList)
		if err != nil {
			return nil, err
		}
		for _, p := range list {
			prices[p.ItemCode] = p.PriceListRate
		}
	}

	lines := make([]document.Line, 0, len(reqs))
	for _, r := range reqs {
		if !r.Qty.IsPositive() {
			return nil, fmt.Errorf("количество %s должно быть больше нуля", r.ItemCode)
		}

		line := document.Line{ItemCode: r.ItemCode, Qty: r.Qty, Rate: r.Rate, Warehouse: sess.WarehouseID}

		item, err := a.tables.Items.GetByRemoteName(ctx, scope, r.ItemCode)
		switch {
		case err == nil:
			line.ItemName = item.ItemName
			line.UOM = item.StockUOM
		case !errors.Is(err, sqlite.ErrNotFound):
			return nil, err
		}

		if line.Rate.IsZero() {
			if rate, ok := prices[r.ItemCode]; ok {
				line.Rate = rate
			} else if item != nil {
				line.Rate = item.StandardRate
			} else {
				return nil, fmt.Errorf("цена товара %s неизвестна", r.ItemCode)
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (a *App) requireSession(ctx context.Context) (*sync.Session, error) {
	sess, err := a.sessions.Current(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	return sess, nil
}

func scopeOf(s *sync.Session) sync.Scope {
	return sync.Scope{InstanceID: s.InstanceID, CompanyID: s.CompanyID}
}
