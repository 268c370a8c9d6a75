package auth

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/types"
)

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать кассира на сервере разработки",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		login, err := types.ReadLine("Логин: ")
		if err != nil {
			return err
		}
		password, err := types.ReadPassword("Пароль: ")
		if err != nil {
			return err
		}
		confirm, err := types.ReadPassword("Повторите пароль: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("пароли не совпадают")
		}

		if err := app.Register(cmd.Context(), login, password); err != nil {
			return fmt.Errorf("ошибка регистрации: %w", err)
		}

		fmt.Println("✅ Регистрация завершена. Войдите: posclient auth login")
		return nil
	},
}
