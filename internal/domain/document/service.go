package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"

	"possync/internal/domain/sync"
)

const (
	ModifiedLayout = "2006-01-02 15:04:05.000000"
	maxPageLength  = 1000
)

type docSpec struct {
	series    string
	nameField string
	validate  func(payload map[string]any) error
}

var specs = map[sync.DocType]docSpec{
	sync.DocCustomer:     {series: "CUST-", validate: required("customer_name")},
	sync.DocItem:         {nameField: "item_code", validate: required("item_code", "item_name")},
	sync.DocItemGroup:    {nameField: "item_group_name", validate: required("item_group_name")},
	sync.DocBin:          {series: "BIN-", validate: required("item_code", "warehouse")},
	sync.DocItemPrice:    {series: "IP-", validate: required("item_code", "price_list")},
	sync.DocPOSProfile:   {nameField: "name", validate: required("name", "company")},
	sync.DocQuotation:    {series: "SAL-QTN-", validate: validateSalesDocument},
	sync.DocSalesOrder:   {series: "SAL-ORD-", validate: validateSalesDocument},
	sync.DocDeliveryNote: {series: "MAT-DN-", validate: validateSalesDocument},
	sync.DocSalesInvoice: {series: "ACC-SINV-", validate: validateSalesDocument},
	sync.DocPaymentEntry: {series: "ACC-PAY-", validate: validatePaymentEntry},
}

type Servicer interface {
	List(ctx context.Context, doctype string, q ListQuery) ([]json.RawMessage, error)
	Get(ctx context.Context, doctype, name string) (json.RawMessage, error)
	Create(ctx context.Context, doctype string, payload map[string]any) (json.RawMessage, error)
}

type Service struct {
	repo Repository
	now  func() time.Time
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
		log:  log,
	}
}

func (s *Service) List(ctx context.Context, doctype string, q ListQuery) ([]json.RawMessage, error) {
	doc, err := resolve(doctype)
	if err != nil {
		return nil, err
	}
	for _, f := range q.Filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}
	if err := q.validateFields(); err != nil {
		return nil, err
	}
	if _, _, err := q.OrderClause(); err != nil {
		return nil, err
	}
	if q.Start < 0 {
		q.Start = 0
	}
	if q.Limit <= 0 || q.Limit > maxPageLength {
		q.Limit = maxPageLength
	}

	rows, err := s.repo.List(ctx, doc, q)
	if err != nil {
		return nil, err
	}
	for i, row := range rows {
		if rows[i], err = project(row, q.Fields); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, doctype, name string) (json.RawMessage, error) {
	doc, err := resolve(doctype)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, doc, name)
}

// Create сохраняет документ и присваивает ему name и modified.
// Повторная отправка с тем же local_id возвращает уже созданный документ.
func (s *Service) Create(ctx context.Context, doctype string, payload map[string]any) (json.RawMessage, error) {
	doc, err := resolve(doctype)
	if err != nil {
		return nil, err
	}
	spec := specs[doc]

	if err := spec.validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	localID, _ := payload["local_id"].(string)
	if localID != "" {
		existing, err := s.repo.FindByLocalID(ctx, doc, localID)
		if err == nil {
			s.log.Debug("duplicate submission", "doctype", doc, "local_id", localID)
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("find by local id: %w", err)
		}
	}

	name, err := s.assignName(ctx, spec, payload)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	payload["name"] = name
	payload["doctype"] = string(doc)
	payload["modified"] = now.Format(ModifiedLayout)
	if _, ok := payload["creation"]; !ok {
		payload["creation"] = now.Format(ModifiedLayout)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	if err := s.repo.Insert(ctx, doc, name, localID, now, data); err != nil {
		return nil, fmt.Errorf("insert %s: %w", doc, err)
	}

	s.log.Info("document created", "doctype", doc, "name", name)
	return data, nil
}

func (s *Service) assignName(ctx context.Context, spec docSpec, payload map[string]any) (string, error) {
	if spec.nameField != "" {
		name, _ := payload[spec.nameField].(string)
		return strings.TrimSpace(name), nil
	}

	prefix := spec.series + s.now().Format("2006") + "-"
	seq, err := s.repo.NextSequence(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("next sequence %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s%05d", prefix, seq), nil
}

func resolve(doctype string) (sync.DocType, error) {
	doc := sync.DocType(doctype)
	if _, ok := specs[doc]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDocType, doctype)
	}
	return doc, nil
}

func required(fields ...string) func(map[string]any) error {
	return func(payload map[string]any) error {
		for _, f := range fields {
			v, _ := payload[f].(string)
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%s is required", f)
			}
		}
		return nil
	}
}

func validateSalesDocument(payload map[string]any) error {
	if err := required("customer", "company")(payload); err != nil {
		return err
	}
	items, _ := payload["items"].([]any)
	if len(items) == 0 {
		return errors.New("items are required")
	}
	for i, raw := range items {
		line, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("items[%d] is malformed", i)
		}
		if code, _ := line["item_code"].(string); code == "" {
			return fmt.Errorf("items[%d].item_code is required", i)
		}
		qty, ok := toDecimal(line["qty"])
		if !ok || !qty.IsPositive() {
			return fmt.Errorf("items[%d].qty must be positive", i)
		}
	}
	return nil
}

func validatePaymentEntry(payload map[string]any) error {
	if err := required("party", "company", "mode_of_payment")(payload); err != nil {
		return err
	}
	amount, ok := toDecimal(payload["paid_amount"])
	if !ok || !amount.IsPositive() {
		return errors.New("paid_amount must be positive")
	}
	return nil
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), true
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}
