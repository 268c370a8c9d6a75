package sync

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"possync/cmd/client/cmd/types"
	"possync/internal/app/client"
	"possync/internal/app/client/manager"
	"possync/internal/app/client/push"
)

var (
	forceSync  bool
	syncStatus bool
	pushOnly   bool
	pullOnly   bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизация с сервером",
	Long: `Отправляет очередь офлайн документов и загружает справочники с сервера.

Без флагов выполняется полный цикл: сначала отправка, затем загрузка.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if pushOnly && pullOnly {
			return fmt.Errorf("--push-only и --pull-only взаимоисключающие")
		}

		if syncStatus {
			return showSyncStatus(cmd.Context(), app)
		}

		ctx := cmd.Context()
		if forceSync {
			ctx = client.WithForce(ctx)
		}
		return runSync(ctx, app)
	},
}

func runSync(ctx context.Context, app *client.App) error {
	states, stop := app.SubscribeSync()
	defer stop()
	go func() {
		for st := range states {
			if st.Phase == manager.PhaseSyncing {
				fmt.Printf("  … %s\n", st.Step)
			}
		}
	}()

	start := time.Now()
	report, err := app.Sync(ctx, pushOnly, pullOnly)

	if !pullOnly {
		printPush(report.Push)
	}
	if !pushOnly {
		printPull(report.Pull)
	}
	fmt.Printf("Время выполнения: %v\n", time.Since(start).Round(time.Millisecond))

	if err != nil {
		return fmt.Errorf("синхронизация завершена с ошибками: %w", err)
	}
	return nil
}

func printPush(r push.Report) {
	fmt.Println("Отправка:")
	if len(r.Families) == 0 {
		fmt.Println("  очередь не обработана")
		return
	}
	for _, f := range r.Families {
		line := fmt.Sprintf("  %-16s отправлено %d, в очереди %d, ошибок %d", f.DocType, f.Pushed, f.Pending, f.Failed)
		switch {
		case f.Err != nil:
			fmt.Println(color.RedString(line + ": " + f.Err.Error()))
		case f.Failed > 0 || f.Pending > 0:
			fmt.Println(color.YellowString(line))
		default:
			fmt.Println(color.GreenString(line))
		}
	}
}

func printPull(st manager.State) {
	switch st.Phase {
	case manager.PhaseSuccess:
		fmt.Println("Загрузка:", color.GreenString(st.String()))
	case manager.PhaseError:
		fmt.Println("Загрузка:", color.RedString(st.String()))
	default:
		fmt.Println("Загрузка:", color.YellowString(st.String()))
	}
}

func showSyncStatus(ctx context.Context, app *client.App) error {
	states, err := app.SyncStatus(ctx)
	if err != nil {
		return fmt.Errorf("ошибка чтения статуса: %w", err)
	}
	if len(states) == 0 {
		fmt.Println("Синхронизация еще не выполнялась")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ТИП\tПОСЛЕДНЯЯ\tЗАГРУЗКА\tОЖИДАЮТ\tОШИБКИ\tСООБЩЕНИЕ")
	for _, s := range states {
		last, pulled := formatStamp(s.LastSyncAt), formatStamp(s.LastPullAt)
		failed := fmt.Sprint(s.FailedCount)
		if s.FailedCount > 0 {
			failed = color.RedString(failed)
		}
		pending := fmt.Sprint(s.PendingCount)
		if s.PendingCount > 0 {
			pending = color.YellowString(pending)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.DocType, last, pulled, pending, failed, s.LastError)
	}
	return w.Flush()
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func init() {
	SyncCmd.Flags().BoolVarP(&forceSync, "force", "f", false, "игнорировать интервал и TTL кэша")
	SyncCmd.Flags().BoolVarP(&syncStatus, "status", "s", false, "показать статус синхронизации")
	SyncCmd.Flags().BoolVar(&pushOnly, "push-only", false, "только отправить очередь")
	SyncCmd.Flags().BoolVar(&pullOnly, "pull-only", false, "только загрузить справочники")
}
