package sync

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultMonthsBack = 3

// Context область одного прогона синхронизации
type Context struct {
	InstanceID  string
	CompanyID   string
	TerritoryID string
	WarehouseID string
	PriceList   string
	FromDate    time.Time
}

// Available ложно, если не задан instance или company: все операции тогда no-op
func (c Context) Available() bool {
	return strings.TrimSpace(c.InstanceID) != "" && strings.TrimSpace(c.CompanyID) != ""
}

func (c Context) Scope() Scope {
	return Scope{InstanceID: c.InstanceID, CompanyID: c.CompanyID}
}

// FromDateString дата начала окна в формате удаленного API
func (c Context) FromDateString() string {
	return c.FromDate.Format("2006-01-02")
}

// DatePolicy вычисляет начало окна выборки документов
type DatePolicy func(now time.Time) time.Time

// MonthsBack первое число месяца n месяцев назад
func MonthsBack(n int) DatePolicy {
	return func(now time.Time) time.Time {
		y, m, _ := now.Date()
		return time.Date(y, m-time.Month(n), 1, 0, 0, 0, 0, now.Location())
	}
}

type ContextProvider struct {
	business BusinessContext
	policy   DatePolicy
	now      func() time.Time
}

func NewContextProvider(business BusinessContext, policy DatePolicy) *ContextProvider {
	if policy == nil {
		policy = MonthsBack(defaultMonthsBack)
	}
	return &ContextProvider{
		business: business,
		policy:   policy,
		now:      time.Now,
	}
}

// Build строит Context из текущей POS-сессии. Без сессии возвращается недоступный Context.
func (p *ContextProvider) Build(ctx context.Context) (Context, error) {
	s, err := p.business.Current(ctx)
	if err != nil {
		return Context{}, fmt.Errorf("load business context: %w", err)
	}
	if s == nil {
		return Context{}, nil
	}

	return Context{
		InstanceID:  s.InstanceID,
		CompanyID:   s.CompanyID,
		TerritoryID: s.TerritoryID,
		WarehouseID: s.WarehouseID,
		PriceList:   s.PriceList,
		FromDate:    p.policy(p.now()),
	}, nil
}
