package session

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
)

// SessionCmd - родительская команда для кассовой смены
var SessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Кассовая смена",
}

var territory string

var OpenCmd = &cobra.Command{
	Use:   "open <profile>",
	Short: "Открыть смену по профилю POS",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		gate, sess, err := app.OpenSession(cmd.Context(), client.OpenSessionRequest{
			ProfileID:   args[0],
			TerritoryID: territory,
		})
		if err != nil {
			return err
		}
		if !gate.IsReady() {
			fmt.Printf("%s %s\n", color.YellowString("Смена не открыта:"), gate)
			return nil
		}

		fmt.Printf("✅ Смена открыта: %s, склад %s, прайс-лист %s (%s)\n",
			sess.ProfileID, sess.WarehouseID, sess.PriceList, sess.OpenedAt.Local().Format(time.DateTime))
		return nil
	},
}

var ProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Профили POS из локальной базы",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		profiles, err := app.Profiles(cmd.Context())
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("Профилей нет. Выполните: posclient gate profiles")
			return nil
		}
		for _, p := range profiles {
			fmt.Printf("%-24s %-20s %-16s оплат: %d\n", p.RemoteName, p.Company, p.Warehouse, len(p.Payments))
		}
		return nil
	},
}

func init() {
	OpenCmd.Flags().StringVar(&territory, "territory", "", "территория продаж")
}
