package auth

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/types"
	"possync/internal/domain/session"
)

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Показать состояние токенов и смены",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		validity, tokens, err := app.AuthStatus(ctx)
		if err != nil {
			return fmt.Errorf("ошибка чтения токенов: %w", err)
		}

		fmt.Printf("Токен:   %s\n", paint(validity))
		if tokens != nil {
			fmt.Printf("Кассир:  %s\n", tokens.UserID)
			fmt.Printf("Выдан:   %s\n", tokens.IssuedAt.Local().Format(time.DateTime))
		}

		if err := app.CheckConnection(); err != nil {
			fmt.Printf("Сервер:  %s\n", color.RedString("недоступен"))
		} else {
			fmt.Printf("Сервер:  %s\n", color.GreenString("доступен"))
		}

		sess, err := app.CurrentSession(ctx)
		if err != nil {
			return err
		}
		if sess == nil {
			fmt.Println("Смена:   не открыта")
			return nil
		}
		fmt.Printf("Смена:   %s (%s), открыта %s\n", sess.ProfileID, sess.CompanyID, sess.OpenedAt.Local().Format(time.DateTime))
		return nil
	},
}

func paint(v session.Validity) string {
	switch v {
	case session.Valid:
		return color.GreenString(string(v))
	case session.NearExpiry:
		return color.YellowString(string(v))
	default:
		return color.RedString(string(v))
	}
}
