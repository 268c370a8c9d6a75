package types

import (
	"errors"

	"github.com/spf13/cobra"

	"possync/internal/app/client"
)

type contextKey string

// ClientAppKey ключ *client.App в контексте команды
const ClientAppKey contextKey = "client_app"

var ErrNoApp = errors.New("приложение не инициализировано")

// App достает приложение, положенное в контекст в PersistentPreRunE
func App(cmd *cobra.Command) (*client.App, error) {
	if cmd.Context() == nil {
		return nil, ErrNoApp
	}
	app, ok := cmd.Context().Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, ErrNoApp
	}
	return app, nil
}
