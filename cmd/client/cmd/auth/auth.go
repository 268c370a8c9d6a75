package auth

import (
	"github.com/spf13/cobra"
)

// AuthCmd - родительская команда для операций с учетной записью кассира
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Управление входом",
	Long:  `Регистрация, вход, выход и состояние токенов.`,
}
