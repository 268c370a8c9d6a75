package invoice

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
)

// InvoiceCmd - родительская команда для продаж
var InvoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Продажи",
}

var (
	customer      string
	customerLocal string
	against       string
	postingDate   string
	modeOfPayment string
	items         []string
)

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Создать счет офлайн",
	Long: `Счет сохраняется локально в открытой смене.

Позиции задаются флагом --item КОД:КОЛ-ВО[:ЦЕНА]; без цены берется цена
из прайс-листа смены. С флагом --pay создается оплата на полную сумму.`,
	Example: `  posclient invoice create --customer CUST-2024-00001 --item COFFEE:2 --item BUN:1:3.50 --pay Cash`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		req := client.CreateInvoiceRequest{
			Customer:        customer,
			CustomerLocalID: customerLocal,
			AgainstLocalID:  against,
			ModeOfPayment:   modeOfPayment,
		}
		if postingDate != "" {
			if req.PostingDate, err = time.ParseInLocation(time.DateOnly, postingDate, time.Local); err != nil {
				return fmt.Errorf("неверная дата %q: %w", postingDate, err)
			}
		}
		for _, raw := range items {
			line, err := ParseLine(raw)
			if err != nil {
				return err
			}
			req.Lines = append(req.Lines, line)
		}

		res, err := app.CreateInvoice(cmd.Context(), req)
		if err != nil {
			return err
		}

		fmt.Printf("✅ Счет %s на сумму %s сохранен\n", res.Invoice.LocalID, res.Invoice.GrandTotal.StringFixed(2))
		if res.Payment != nil {
			fmt.Printf("   Оплата %s: %s %s\n", res.Payment.LocalID, res.Payment.ModeOfPayment, res.Payment.PaidAmount.StringFixed(2))
		}
		fmt.Println("Документы будут отправлены при следующей синхронизации (posclient sync --push-only)")
		return nil
	},
}

// ParseLine разбирает "КОД:КОЛ-ВО[:ЦЕНА]"
func ParseLine(raw string) (client.LineRequest, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 || strings.TrimSpace(parts[0]) == "" {
		return client.LineRequest{}, fmt.Errorf("позиция %q: ожидается КОД:КОЛ-ВО[:ЦЕНА]", raw)
	}

	qty, err := decimal.NewFromString(parts[1])
	if err != nil {
		return client.LineRequest{}, fmt.Errorf("позиция %q: количество: %w", raw, err)
	}
	if !qty.IsPositive() {
		return client.LineRequest{}, errors.New("количество должно быть больше нуля")
	}

	line := client.LineRequest{ItemCode: strings.TrimSpace(parts[0]), Qty: qty}
	if len(parts) == 3 {
		if line.Rate, err = decimal.NewFromString(parts[2]); err != nil {
			return client.LineRequest{}, fmt.Errorf("позиция %q: цена: %w", raw, err)
		}
	}
	return line, nil
}

func init() {
	CreateCmd.Flags().StringVar(&customer, "customer", "", "клиент (имя на сервере)")
	CreateCmd.Flags().StringVar(&customerLocal, "customer-local", "", "local_id клиента, созданного офлайн")
	CreateCmd.Flags().StringVar(&against, "against", "", "local_id заказа, по которому выставляется счет")
	CreateCmd.Flags().StringVar(&postingDate, "date", "", "дата проводки YYYY-MM-DD (по умолчанию сегодня)")
	CreateCmd.Flags().StringVar(&modeOfPayment, "pay", "", "способ оплаты из профиля смены")
	CreateCmd.Flags().StringArrayVar(&items, "item", nil, "позиция КОД:КОЛ-ВО[:ЦЕНА]")
	_ = CreateCmd.MarkFlagRequired("item")
}
