package gate

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/types"
	"possync/internal/domain/sync"
)

// GateCmd - ручной запуск проверок готовности
var GateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Проверки готовности перед работой",
}

var ProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Загрузить профили POS и способы оплаты",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		printResult(app.EnsureProfiles(cmd.Context()))
		return nil
	},
}

var OpeningCmd = &cobra.Command{
	Use:   "opening <profile>",
	Short: "Проверить, можно ли открыть смену по профилю",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		printResult(app.EnsureOpening(cmd.Context(), args[0]))
		return nil
	},
}

func printResult(res sync.GateResult) {
	switch res.Status {
	case sync.GateReady:
		fmt.Println(color.GreenString(res.String()))
	case sync.GatePending:
		fmt.Println(color.YellowString(res.String()))
	default:
		fmt.Println(color.RedString(res.String()))
	}
}
