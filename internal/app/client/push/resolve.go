package push

import (
	"context"
	"fmt"

	"possync/internal/domain/document"
	"possync/internal/domain/sync"
)

// NameLookup возвращает имя на сервере для локального id; "" если документ еще не отправлен
type NameLookup func(ctx context.Context, scope sync.Scope, localID string) (string, error)

// Getter чтение записи по local_id
type Getter[T any, PT Entity[T]] interface {
	Get(ctx context.Context, scope sync.Scope, localID string) (PT, error)
}

func LookupFrom[T any, PT Entity[T]](g Getter[T, PT]) NameLookup {
	return func(ctx context.Context, scope sync.Scope, localID string) (string, error) {
		item, err := g.Get(ctx, scope, localID)
		if err != nil {
			return "", err
		}
		return item.SyncMeta().RemoteName, nil
	}
}

func resolveName(ctx context.Context, scope sync.Scope, lookup NameLookup, localID string) (string, error) {
	name, err := lookup(ctx, scope, localID)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", localID, err)
	}
	if name == "" {
		return "", fmt.Errorf("%w: %s", sync.ErrUpstreamNotSynced, localID)
	}
	return name, nil
}

// SalesResolver подставляет клиента и документ-основание торгового документа
func SalesResolver(customers, upstream NameLookup) ResolveFunc[*document.SalesDocument] {
	return func(ctx context.Context, scope sync.Scope, d *document.SalesDocument) error {
		if d.CustomerLocalID != "" && customers != nil {
			name, err := resolveName(ctx, scope, customers, d.CustomerLocalID)
			if err != nil {
				return err
			}
			d.Customer = name
		}
		if d.AgainstLocalID != "" && upstream != nil {
			name, err := resolveName(ctx, scope, upstream, d.AgainstLocalID)
			if err != nil {
				return err
			}
			d.Against = name
		}
		return nil
	}
}

// PaymentResolver подставляет плательщика и счет, по которому принята оплата
func PaymentResolver(invoices, customers NameLookup) ResolveFunc[*document.PaymentEntry] {
	return func(ctx context.Context, scope sync.Scope, p *document.PaymentEntry) error {
		if p.PartyLocalID != "" && customers != nil {
			name, err := resolveName(ctx, scope, customers, p.PartyLocalID)
			if err != nil {
				return err
			}
			p.Party = name
		}
		if p.AgainstInvoiceLocalID == "" {
			return nil
		}
		name, err := resolveName(ctx, scope, invoices, p.AgainstInvoiceLocalID)
		if err != nil {
			return err
		}
		p.AgainstInvoice = name
		return nil
	}
}
