package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// storedTarget loads the backup target row from the live database, creating
// backup_config when it is missing. It fails when no target is stored.
func storedTarget(ctx context.Context) (*BackupTarget, ConnectionDescriptor, error) {
	live, err := liveDescriptor(appConfig)
	if err != nil {
		return nil, live, err
	}
	store := NewTargetStore(live)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, live, err
	}
	target, err := store.Get(ctx)
	if err != nil {
		return nil, live, fmt.Errorf("load backup target: %w", err)
	}
	if target == nil {
		return nil, live, configErrorf("no backup target stored; run `oasis target save` first")
	}
	return target, live, nil
}

// sideDescriptor returns the live connection when useLive is set, otherwise
// the stored backup target's.
func sideDescriptor(ctx context.Context, useLive bool) (ConnectionDescriptor, error) {
	if useLive {
		return liveDescriptor(appConfig)
	}
	target, _, err := storedTarget(ctx)
	if err != nil {
		return ConnectionDescriptor{}, err
	}
	return target.Descriptor(), nil
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy every backup table from the live database to the target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			target, live, err := storedTarget(ctx)
			if err != nil {
				return err
			}
			s := NewScheduler(NewEngine(), NewTargetStore(live))
			res, err := s.RunCycle(ctx, target, live)
			if err != nil {
				return err
			}
			return reportCycle(cmd.OutOrStdout(), res)
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Copy every backup table from the target back to the live database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			target, live, err := storedTarget(ctx)
			if err != nil {
				return err
			}
			s := NewScheduler(NewEngine(), nil)
			res, err := s.Restore(ctx, target, live)
			if err != nil {
				return err
			}
			return reportCycle(cmd.OutOrStdout(), res)
		},
	}
}

func newTransferCmd() *cobra.Command {
	var direction int
	cmd := &cobra.Command{
		Use:   "transfer <table>",
		Short: "Transfer one table between the live database and the target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target, live, err := storedTarget(ctx)
			if err != nil {
				return err
			}
			if !target.IsComplete() {
				return configErrorf("backup target connection settings are incomplete")
			}
			if err := NewEngine().BidirectionalTransfer(ctx, live, target.Descriptor(), args[0], direction); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transferred %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&direction, "direction", DirectionLiveToBackup, "1 = live to backup, 2 = backup to live")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backup schedule with /metrics, /healthz and /status until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			live, err := liveDescriptor(appConfig)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), appConfig, live)
		},
	}
}

func newTestConnectionCmd() *cobra.Command {
	var useLive bool
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Check that the backup target (or live database) is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			desc, err := sideDescriptor(ctx, useLive)
			if err != nil {
				return err
			}
			if !NewEngine().TestConnection(ctx, desc) {
				return fmt.Errorf("connection to %s failed", redactURL(desc.URL))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connection to %s ok\n", redactURL(desc.URL))
			return nil
		},
	}
	cmd.Flags().BoolVar(&useLive, "live", false, "test the live database instead of the backup target")
	return cmd
}

func newValidateScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-schedule <expr>",
		Short: "Check a schedule (seconds or cron expression) and print its next fire",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := parseSchedule(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: %s, next run %s\n",
				sched, sched.next(time.Now()).Format(time.DateTime))
			return nil
		},
	}
}

func newTablesCmd() *cobra.Command {
	var useLive bool
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List user tables of the backup target (or live database)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			desc, err := sideDescriptor(ctx, useLive)
			if err != nil {
				return err
			}
			names, err := NewEngine().ListTableNames(ctx, desc)
			if err != nil {
				return err
			}
			t := newTableWriter(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Table"})
			for _, n := range names {
				t.AppendRow(table.Row{n})
			}
			t.AppendFooter(table.Row{fmt.Sprintf("%d tables", len(names))})
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&useLive, "live", false, "list the live database instead of the backup target")
	return cmd
}

func newCountCmd() *cobra.Command {
	var useLive bool
	cmd := &cobra.Command{
		Use:   "count <table>",
		Short: "Print the row count of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			desc, err := sideDescriptor(ctx, useLive)
			if err != nil {
				return err
			}
			n, err := NewEngine().TableRowCount(ctx, desc, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useLive, "live", false, "count on the live database instead of the backup target")
	return cmd
}

func newDescribeCmd() *cobra.Command {
	var useLive bool
	cmd := &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the introspected structure of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			desc, err := sideDescriptor(ctx, useLive)
			if err != nil {
				return err
			}
			t, d, err := NewEngine().DescribeTable(ctx, desc, args[0])
			if err != nil {
				return err
			}
			renderTableDescription(cmd.OutOrStdout(), t, d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useLive, "live", false, "describe on the live database instead of the backup target")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored backup target and its next planned run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			target, _, err := storedTarget(ctx)
			if err != nil {
				return err
			}
			now := time.Now()
			report := newStatusReport(target, false, plannedNextRun(target, now), now)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			renderStatus(out, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func newTargetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Show, save or disable the stored backup target",
	}
	cmd.AddCommand(newTargetShowCmd(), newTargetSaveCmd(), newTargetDisableCmd())
	return cmd
}

func newTargetShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored backup target with its password masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, _, err := storedTarget(cmd.Context())
			if err != nil {
				return err
			}
			renderTarget(cmd.OutOrStdout(), target)
			return nil
		},
	}
}

// notifyControl asks a running serve to pick up the stored target.
func notifyControl(ctx context.Context, path string) {
	if err := notifyServe(ctx, appConfig.Serve.Listen, path); err != nil {
		log.Warn().Err(err).Msg("running server not notified")
		return
	}
	log.Info().Str("endpoint", path).Msg("running server notified")
}

func newTargetSaveCmd() *cobra.Command {
	var (
		t      BackupTarget
		notify bool
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or update the backup target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := validateDescriptor(t.Descriptor()); err != nil {
				return err
			}
			if !blank(t.Schedule) {
				if err := ValidateSchedule(t.Schedule); err != nil {
					return err
				}
			}
			if t.Enabled && !t.IsComplete() {
				return configErrorf("an enabled backup target needs url, username, password and driver")
			}
			live, err := liveDescriptor(appConfig)
			if err != nil {
				return err
			}
			store := NewTargetStore(live)
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := store.SaveOrUpdate(ctx, &t); err != nil {
				return err
			}
			log.Info().Int64("id", t.ID).Str("target", t.DisplayURL()).Msg("backup target saved")
			renderTarget(cmd.OutOrStdout(), &t)
			if notify {
				if t.Enabled {
					notifyControl(ctx, "/start")
				} else {
					notifyControl(ctx, "/stop")
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&t.URL, "url", "", "backup database URL")
	f.StringVar(&t.Username, "username", "", "backup database user")
	f.StringVar(&t.Password, "password", "", "backup database password")
	f.StringVar(&t.Driver, "driver", "mysql", "backup database driver")
	f.StringVar(&t.Schedule, "schedule", "", "seconds between runs or a cron expression")
	f.BoolVar(&t.Enabled, "enabled", false, "enable scheduled backups")
	f.StringVar(&t.Description, "description", defaultTargetDescription, "free-form description")
	f.BoolVar(&notify, "notify", false, "re-arm the schedule of a running serve")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newTargetDisableCmd() *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable scheduled backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			live, err := liveDescriptor(appConfig)
			if err != nil {
				return err
			}
			store := NewTargetStore(live)
			if err := store.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			if err := store.Disable(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "scheduled backups disabled")
			if notify {
				notifyControl(cmd.Context(), "/stop")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "stop the schedule of a running serve")
	return cmd
}

func newTableWriter(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// reportCycle prints one row per table and fails when the cycle was partial.
func reportCycle(w io.Writer, res *CycleResult) error {
	t := newTableWriter(w)
	t.SetTitle(fmt.Sprintf("%s cycle %s", res.Trigger, res.ID))
	t.AppendHeader(table.Row{"Table", "Result", "Error"})
	for _, name := range res.Succeeded {
		t.AppendRow(table.Row{name, "ok", ""})
	}
	failed := make([]string, 0, len(res.Failed))
	for name := range res.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		t.AppendRow(table.Row{name, "failed", res.Failed[name].Error()})
	}
	for _, name := range res.Skipped {
		t.AppendRow(table.Row{name, "skipped", ""})
	}
	t.AppendFooter(table.Row{"", "elapsed", res.Duration.Round(time.Millisecond).String()})
	t.Render()

	if !res.Complete() {
		return fmt.Errorf("%s cycle %s incomplete: %d failed, %d skipped",
			res.Trigger, res.ID, len(res.Failed), len(res.Skipped))
	}
	return nil
}

func renderTableDescription(w io.Writer, t *Table, d Dialect) {
	pk := make(map[string]bool, len(t.PrimaryKey))
	for _, c := range t.PrimaryKey {
		pk[strings.ToLower(c)] = true
	}

	cols := newTableWriter(w)
	cols.SetTitle(fmt.Sprintf("%s (%s)", t.Name, d.Name()))
	cols.AppendHeader(table.Row{"Column", "Type", "Canonical", "Null", "Default", "Key", "Extra", "Comment"})
	for _, c := range t.Columns {
		def := ""
		if c.Default != nil {
			def = *c.Default
		}
		key := ""
		if pk[strings.ToLower(c.Name)] {
			key = "PRI"
		}
		extra := ""
		if c.AutoIncrement {
			extra = "auto_increment"
		}
		typ := c.ColumnType
		if typ == "" {
			typ = c.TypeName
			if c.Size > 0 {
				typ = sized(c.TypeName, c.Size, c.Digits)
			}
		}
		cols.AppendRow(table.Row{c.Name, typ, string(d.CanonicalType(c)), yesNo(c.Nullable), def, key, extra, c.Comment})
	}
	cols.Render()

	if len(t.Indexes) > 0 {
		idx := newTableWriter(w)
		idx.AppendHeader(table.Row{"Index", "Columns", "Unique", "Type"})
		for _, i := range t.Indexes {
			idx.AppendRow(table.Row{i.Name, strings.Join(i.Columns, ", "), yesNo(i.Unique), i.Type})
		}
		idx.Render()
	}
	if t.Engine != "" || t.Collation != "" {
		fmt.Fprintf(w, "engine=%s collation=%s\n", t.Engine, t.Collation)
	}
	for _, warn := range collectIndexCompatibilityWarnings(t) {
		fmt.Fprintf(w, "WARN: %s\n", warn)
	}
}

func renderTarget(w io.Writer, target *BackupTarget) {
	t := newTableWriter(w)
	t.AppendRows([]table.Row{
		{"id", target.ID},
		{"url", target.DisplayURL()},
		{"username", target.Username},
		{"driver", target.Driver},
		{"schedule", target.Schedule},
		{"enabled", yesNo(target.Enabled)},
		{"description", target.Description},
		{"last backup", formatTime(target.LastBackupTime)},
		{"backup count", target.BackupCount},
	})
	t.Render()
}

func renderStatus(w io.Writer, r statusReport) {
	t := newTableWriter(w)
	t.AppendRows([]table.Row{
		{"enabled", yesNo(r.Enabled)},
		{"schedule", r.Schedule},
		{"target", r.TargetURL},
		{"next run", formatTime(r.NextRun)},
		{"last backup", formatTime(r.LastBackupTime)},
		{"backup count", r.BackupCount},
		{"current time", r.CurrentTime.Format(time.DateTime)},
	})
	t.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateTime)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
