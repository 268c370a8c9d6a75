package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/types"
)

var (
	loginUser string
	noSync    bool
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти на сервер",
	Long: `Аутентификация на сервере по логину и паролю (OAuth2 password grant).

Токены сохраняются локально в зашифрованном виде и продлеваются автоматически.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		login := loginUser
		if login == "" {
			if login, err = types.ReadLine("Логин: "); err != nil {
				return err
			}
		}
		password, err := types.ReadPassword("Пароль: ")
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := app.Login(ctx, login, password); err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}
		fmt.Println("✅ Вход выполнен успешно!")

		if noSync {
			return nil
		}

		fmt.Println("Загрузка профилей POS...")
		if res := app.EnsureProfiles(ctx); !res.IsReady() {
			fmt.Printf("⚠️  Профили не загружены: %s\n", res)
			fmt.Println("Вы можете продолжить работу в офлайн-режиме")
			return nil
		}
		fmt.Println("✓ Профили загружены")
		return nil
	},
}

func init() {
	LoginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "логин (email)")
	LoginCmd.Flags().BoolVar(&noSync, "no-sync", false, "не загружать профили после входа")
}
