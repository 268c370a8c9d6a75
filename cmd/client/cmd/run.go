package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Запустить фоновую синхронизацию",
	Long: `Демон кассы: heartbeat продлевает токены, периодически выполняется
полная загрузка справочников и отправка очереди. Завершение по Ctrl+C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		go func() {
			for reason := range app.LoginRequired() {
				fmt.Printf("⚠️  Требуется повторный вход (%s): posclient auth login\n", reason)
			}
		}()

		return app.Run()
	},
}
