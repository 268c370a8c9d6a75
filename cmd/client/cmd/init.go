package cmd

import (
	"possync/cmd/client/cmd/auth"
	"possync/cmd/client/cmd/customer"
	"possync/cmd/client/cmd/gate"
	"possync/cmd/client/cmd/invoice"
	"possync/cmd/client/cmd/session"
	"possync/cmd/client/cmd/sync"
)

func init() {
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)
	auth.AuthCmd.AddCommand(auth.StatusCmd)

	rootCmd.AddCommand(session.SessionCmd)
	session.SessionCmd.AddCommand(session.OpenCmd)
	session.SessionCmd.AddCommand(session.ProfilesCmd)

	rootCmd.AddCommand(gate.GateCmd)
	gate.GateCmd.AddCommand(gate.ProfilesCmd)
	gate.GateCmd.AddCommand(gate.OpeningCmd)

	rootCmd.AddCommand(customer.CustomerCmd)
	customer.CustomerCmd.AddCommand(customer.CreateCmd)

	rootCmd.AddCommand(invoice.InvoiceCmd)
	invoice.InvoiceCmd.AddCommand(invoice.CreateCmd)

	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(runCmd)
}
