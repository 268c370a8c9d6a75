package customer

import (
	"fmt"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
)

// CustomerCmd - родительская команда для клиентов
var CustomerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Клиенты",
}

var req client.CreateCustomerRequest

var CreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Создать клиента офлайн",
	Long:  `Клиент сохраняется локально и отправляется на сервер при следующей синхронизации.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		req.Name = args[0]
		c, err := app.CreateCustomer(cmd.Context(), req)
		if err != nil {
			return err
		}

		fmt.Printf("✅ Клиент создан: %s (local_id %s, статус %s)\n", c.CustomerName, c.LocalID, c.SyncStatus)
		return nil
	},
}

func init() {
	CreateCmd.Flags().StringVar(&req.Group, "group", "", "группа клиентов")
	CreateCmd.Flags().StringVar(&req.Territory, "territory", "", "территория")
	CreateCmd.Flags().StringVar(&req.Mobile, "mobile", "", "телефон")
	CreateCmd.Flags().StringVar(&req.Email, "email", "", "email")
	CreateCmd.Flags().StringVar(&req.TaxID, "tax-id", "", "ИНН")
}
