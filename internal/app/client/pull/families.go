package pull

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/domain/document"
	"possync/internal/domain/sync"
)

// Deps общие зависимости pull-репозиториев
type Deps struct {
	Remote document.Remote
	State  sync.StateRepository
	TTL    sync.TTL
	Log    *slog.Logger
}

func NewCustomers(d Deps, table Table[document.Customer, *document.Customer]) *Repository[document.Customer, *document.Customer] {
	return NewRepository(sync.DocCustomer, table, d.Remote, d.State, d.TTL, func(sc sync.Context) document.ListQuery {
		q := document.ListQuery{OrderBy: "modified desc"}
		if sc.TerritoryID != "" {
			q.Filters = append(q.Filters, document.Eq("territory", sc.TerritoryID))
		}
		return q
	}, d.Log)
}

func NewCategories(d Deps, table Table[document.Category, *document.Category]) *Repository[document.Category, *document.Category] {
	return NewRepository(sync.DocItemGroup, table, d.Remote, d.State, d.TTL, func(sync.Context) document.ListQuery {
		return document.ListQuery{OrderBy: "modified desc"}
	}, d.Log)
}

func NewItems(d Deps, table Table[document.Item, *document.Item]) *Repository[document.Item, *document.Item] {
	return NewRepository(sync.DocItem, table, d.Remote, d.State, d.TTL, func(sync.Context) document.ListQuery {
		return document.ListQuery{OrderBy: "modified desc"}
	}, d.Log)
}

func NewBins(d Deps, table Table[document.Bin, *document.Bin]) *Repository[document.Bin, *document.Bin] {
	return NewRepository(sync.DocBin, table, d.Remote, d.State, d.TTL, func(sc sync.Context) document.ListQuery {
		var q document.ListQuery
		if sc.WarehouseID != "" {
			q.Filters = append(q.Filters, document.Eq("warehouse", sc.WarehouseID))
		}
		return q
	}, d.Log)
}

func NewPrices(d Deps, table Table[document.ItemPrice, *document.ItemPrice]) *Repository[document.ItemPrice, *document.ItemPrice] {
	return NewRepository(sync.DocItemPrice, table, d.Remote, d.State, d.TTL, func(sc sync.Context) document.ListQuery {
		var q document.ListQuery
		if sc.PriceList != "" {
			q.Filters = append(q.Filters, document.Eq("price_list", sc.PriceList))
		}
		return q
	}, d.Log)
}

func NewInvoices(d Deps, table Table[document.SalesDocument, *document.SalesDocument]) *Repository[document.SalesDocument, *document.SalesDocument] {
	return NewRepository(sync.DocSalesInvoice, table, d.Remote, d.State, d.TTL, func(sc sync.Context) document.ListQuery {
		return document.ListQuery{
			Filters: []document.Filter{
				document.Eq("company", sc.CompanyID),
				document.Gte("posting_date", sc.FromDateString()),
			},
			OrderBy: "modified desc",
		}
	}, d.Log)
}

func NewProfiles(d Deps, table Table[document.POSProfile, *document.POSProfile]) *Repository[document.POSProfile, *document.POSProfile] {
	return NewRepository(sync.DocPOSProfile, table, d.Remote, d.State, d.TTL, func(sc sync.Context) document.ListQuery {
		return document.ListQuery{Filters: []document.Filter{document.Eq("company", sc.CompanyID)}}
	}, d.Log)
}

// Inventory каталог, остатки и цены, синхронизируемые вместе
type Inventory struct {
	Items  *Repository[document.Item, *document.Item]
	Bins   *Repository[document.Bin, *document.Bin]
	Prices *Repository[document.ItemPrice, *document.ItemPrice]
}

// Refresh останавливается на первой ошибке
func (inv *Inventory) Refresh(ctx context.Context, sc sync.Context, force bool) error {
	if err := inv.Items.Refresh(ctx, sc, force); err != nil {
		return err
	}
	if err := inv.Bins.Refresh(ctx, sc, force); err != nil {
		return err
	}
	return inv.Prices.Refresh(ctx, sc, force)
}

// PaymentMethods способы оплаты профиля: приходят дочерней таблицей POS Profile
type PaymentMethods struct {
	remote   document.Remote
	profiles Store[document.POSProfile, *document.POSProfile]
	methods  Store[document.PaymentMethod, *document.PaymentMethod]
	state    sync.StateRepository
	log      *slog.Logger
}

func NewPaymentMethods(
	d Deps,
	profiles Store[document.POSProfile, *document.POSProfile],
	methods Store[document.PaymentMethod, *document.PaymentMethod],
) *PaymentMethods {
	return &PaymentMethods{
		remote:   d.Remote,
		profiles: profiles,
		methods:  methods,
		state:    d.State,
		log:      d.Log.With(slog.String("doctype", string(sync.DocPaymentMethod))),
	}
}

// Refresh загружает профиль и сохраняет его способы оплаты. Возвращает число способов.
func (p *PaymentMethods) Refresh(ctx context.Context, sc sync.Context, profileID string) (int, error) {
	if !sc.Available() {
		return 0, sync.ErrContextUnavailable
	}
	scope := sc.Scope()

	raw, err := p.remote.FetchByName(ctx, sync.DocPOSProfile, profileID)
	if err != nil {
		p.markFailure(scope, err)
		return 0, fmt.Errorf("fetch pos profile %s: %w", profileID, err)
	}
	if raw == nil {
		return 0, fmt.Errorf("pos profile %s: %w", profileID, document.ErrNotFound)
	}

	var profile document.POSProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return 0, fmt.Errorf("decode pos profile %s: %w", profileID, err)
	}

	methods := make([]*document.PaymentMethod, 0, len(profile.Payments))
	for i := range profile.Payments {
		m := profile.Payments[i]
		m.Parent = profile.RemoteName
		if m.RemoteName == "" {
			m.RemoteName = profile.RemoteName + "/" + m.ModeOfPayment
		}
		if m.RemoteModified == "" {
			m.RemoteModified = profile.RemoteModified
		}
		methods = append(methods, &m)
	}

	if _, err := UpsertFromServer[document.POSProfile](ctx, p.profiles, scope, []*document.POSProfile{&profile}); err != nil {
		return 0, err
	}
	if _, err := UpsertFromServer[document.PaymentMethod](ctx, p.methods, scope, methods); err != nil {
		return 0, err
	}

	if err := p.state.MarkPulled(ctx, scope, sync.DocPaymentMethod, time.Now()); err != nil {
		p.log.Warn("failed to persist sync state", slog.String("error", err.Error()))
	}
	return len(methods), nil
}

func (p *PaymentMethods) markFailure(scope sync.Scope, err error) {
	if serr := p.state.MarkFailure(context.Background(), scope, sync.DocPaymentMethod, err.Error()); serr != nil {
		p.log.Warn("failed to persist sync state", slog.String("error", serr.Error()))
	}
}
