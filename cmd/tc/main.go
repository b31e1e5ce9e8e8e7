package main

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"timecard/internal/app"
	"timecard/internal/config"
	"timecard/internal/db"
	"timecard/internal/domain"
	"timecard/internal/engine"
	"timecard/internal/repo"
	"timecard/internal/reports"
	"timecard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tc",
	Short: "Timecard CLI",
	Long: `Timecard tracks per-day timesheet entries through an approval workflow.
Entries start as drafts, get submitted to the project's approver, and end up
approved or rejected. Approved ranges can be locked for payroll and only
unlocked with a reason, leaving an audit trail. Reports surface missing
timesheets and overtime.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	_ = godotenv.Load()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TIMECARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(holidayCmd())
	rootCmd.AddCommand(entryCmd())
	rootCmd.AddCommand(lockCmd())
	rootCmd.AddCommand(unlockCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default timecard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

// --- users ---

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userAddCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userDeactivateCmd())
	return user
}

func userAddCmd() *cobra.Command {
	var id, name string
	var admin bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, engine.UserCreateOptions{ID: id, Name: name, Admin: admin})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin rights")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func userListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.Repo.ListUsers(ctx, activeOnly)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Active", "Admin"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Active, u.Admin})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active users")
	return cmd
}

func userDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.SetUserActive(ctx, args[0], false)
			})
		},
	}
}

// --- projects ---

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectAddCmd())
	prj.AddCommand(projectListCmd())
	return prj
}

func projectAddCmd() *cobra.Command {
	var id, name, approver string
	var billable bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
					ID: id, Name: name, DefaultApprover: approver, Billable: billable,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&approver, "approver", "", "default approver user id")
	cmd.Flags().BoolVar(&billable, "billable", false, "billable project")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("approver")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Approver", "Billable"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.DefaultApprover, p.Billable})
				}
				tw.Render()
				return nil
			})
		},
	}
}

// --- holidays ---

func holidayCmd() *cobra.Command {
	hol := &cobra.Command{Use: "holiday", Short: "Manage the holiday calendar"}
	hol.AddCommand(holidayAddCmd())
	hol.AddCommand(holidayListCmd())
	return hol
}

func holidayAddCmd() *cobra.Command {
	var date, region, name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a holiday",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				h, err := e.AddHoliday(ctx, domain.Holiday{Date: date, Region: region, Name: name})
				if err != nil {
					return err
				}
				return printJSONOrTable(h)
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD")
	cmd.Flags().StringVar(&region, "region", "", "region code")
	cmd.Flags().StringVar(&name, "name", "", "holiday name")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func holidayListCmd() *cobra.Command {
	var region, from, to string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List holidays",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListHolidays(ctx, region, from, to)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region filter")
	cmd.Flags().StringVar(&from, "from", "", "range start YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "range end YYYY-MM-DD")
	return cmd
}

// --- entries ---

func entryCmd() *cobra.Command {
	entry := &cobra.Command{Use: "entry", Short: "Manage timesheet entries"}
	entry.AddCommand(entryAddCmd())
	entry.AddCommand(entryListCmd())
	entry.AddCommand(entryShowCmd())
	entry.AddCommand(entryUpdateCmd())
	entry.AddCommand(entryDeleteCmd())
	entry.AddCommand(entrySubmitCmd())
	entry.AddCommand(entryApproveCmd())
	entry.AddCommand(entryRejectCmd())
	entry.AddCommand(entryPendingCmd())
	return entry
}

func entryAddCmd() *cobra.Command {
	var projectID, taskID, date, description, ticketRef, taskType string
	var hours float64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a draft entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				actor := viper.GetString("actor-id")
				entry, err := e.CreateDraft(ctx, engine.EntryCreateOptions{
					UserID:      actor,
					ProjectID:   projectID,
					TaskID:      taskID,
					WorkDate:    date,
					Hours:       hours,
					Description: description,
					TicketRef:   ticketRef,
					TaskType:    taskType,
					ActorID:     actor,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&date, "date", "", "work date YYYY-MM-DD")
	cmd.Flags().Float64Var(&hours, "hours", 0, "hours worked")
	cmd.Flags().StringVar(&description, "description", "", "what was done")
	cmd.Flags().StringVar(&ticketRef, "ticket", "", "ticket reference")
	cmd.Flags().StringVar(&taskType, "type", "", "task type")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func entryListCmd() *cobra.Command {
	var f repo.EntryFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEntries(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderEntryTable(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.UserID, "user", "", "user filter")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.From, "from", "", "range start YYYY-MM-DD")
	cmd.Flags().StringVar(&f.To, "to", "", "range end YYYY-MM-DD")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func entryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.GetEntry(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
}

func entryUpdateCmd() *cobra.Command {
	var description, ticketRef, taskID, taskType string
	var hours float64
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a draft or rejected entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.EntryUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("hours") {
					opts.Hours = &hours
				}
				if cmd.Flags().Changed("description") {
					opts.Description = &description
				}
				if cmd.Flags().Changed("ticket") {
					opts.TicketRef = &ticketRef
				}
				if cmd.Flags().Changed("task") {
					opts.TaskID = &taskID
				}
				if cmd.Flags().Changed("type") {
					opts.TaskType = &taskType
				}
				entry, err := e.UpdateDraft(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().Float64Var(&hours, "hours", 0, "hours worked")
	cmd.Flags().StringVar(&description, "description", "", "what was done")
	cmd.Flags().StringVar(&ticketRef, "ticket", "", "ticket reference")
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&taskType, "type", "", "task type")
	return cmd
}

func entryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft or rejected entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Delete(ctx, viper.GetString("actor-id"), args[0])
			})
		},
	}
}

func entrySubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <id>",
		Short: "Submit an entry for approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.Submit(ctx, viper.GetString("actor-id"), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
}

func entryApproveCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a submitted entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.Approve(ctx, viper.GetString("actor-id"), args[0], comment)
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment")
	return cmd
}

func entryRejectCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a submitted entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entry, err := e.Reject(ctx, viper.GetString("actor-id"), args[0], comment)
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "", "reason the entry needs rework")
	return cmd
}

func entryPendingCmd() *cobra.Command {
	var from, to, projectID, userID string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List entries awaiting your approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListPending(ctx, repo.PendingFilters{
					ApproverID: viper.GetString("actor-id"),
					From:       from,
					To:         to,
					ProjectID:  projectID,
					UserID:     userID,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderEntryTable(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "range start YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "range end YYYY-MM-DD")
	cmd.Flags().StringVar(&projectID, "project", "", "project filter")
	cmd.Flags().StringVar(&userID, "user", "", "user filter")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// --- locks ---

func lockCmd() *cobra.Command {
	var f repo.RangeFilter
	var preview bool
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock approved entries in a range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Lock(ctx, viper.GetString("actor-id"), f, preview)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&f.From, "from", "", "range start YYYY-MM-DD")
	cmd.Flags().StringVar(&f.To, "to", "", "range end YYYY-MM-DD")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.UserID, "user", "", "user filter")
	cmd.Flags().BoolVar(&preview, "preview", false, "count without locking")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func unlockCmd() *cobra.Command {
	var f repo.RangeFilter
	var preview bool
	var reason string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock locked entries in a range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Unlock(ctx, viper.GetString("actor-id"), f, preview, reason)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&f.From, "from", "", "range start YYYY-MM-DD")
	cmd.Flags().StringVar(&f.To, "to", "", "range end YYYY-MM-DD")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.UserID, "user", "", "user filter")
	cmd.Flags().BoolVar(&preview, "preview", false, "count without unlocking")
	cmd.Flags().StringVar(&reason, "reason", "", "why the range is reopened")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// --- reports ---

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Compliance reports"}
	rep.AddCommand(reportMissingCmd())
	rep.AddCommand(reportOvertimeCmd())
	return rep
}

func reportMissingCmd() *cobra.Command {
	var from, to, region string
	var includeWeekends, asCSV bool
	cmd := &cobra.Command{
		Use:   "missing",
		Short: "Users with days missing a timesheet entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if region == "" && e.Config != nil {
					region = e.Config.Compliance.HolidayRegion
				}
				svc := reports.Service{Repo: e.Repo}
				report, err := svc.MissingTimesheets(ctx, from, to, !includeWeekends, region)
				if err != nil {
					return err
				}
				if asCSV {
					return writeCSV(report.Header(), report.CSVRows())
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"User", "Date"})
				for _, row := range report.Rows {
					tw.AppendRow(table.Row{row.UserID, row.Date})
				}
				tw.AppendFooter(table.Row{"missing days", report.Summary.TotalMissingDays})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "range start YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "range end YYYY-MM-DD")
	cmd.Flags().StringVar(&region, "region", "", "holiday region")
	cmd.Flags().BoolVar(&includeWeekends, "include-weekends", false, "count weekends as working days")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "output CSV")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func reportOvertimeCmd() *cobra.Command {
	var from, to string
	var capHours float64
	var asCSV bool
	cmd := &cobra.Command{
		Use:   "overtime",
		Short: "User-days over the overtime cap",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if capHours <= 0 && e.Config != nil {
					capHours = e.Config.Compliance.OvertimeCap
				}
				svc := reports.Service{Repo: e.Repo}
				report, err := svc.Overtime(ctx, from, to, capHours)
				if err != nil {
					return err
				}
				if asCSV {
					return writeCSV(report.Header(), report.CSVRows())
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"User", "Date", "Hours"})
				for _, row := range report.Rows {
					tw.AppendRow(table.Row{row.UserID, row.Date, row.TotalHours})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "range start YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "range end YYYY-MM-DD")
	cmd.Flags().Float64Var(&capHours, "cap", 0, "daily hours threshold")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "output CSV")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// --- audit ---

func auditCmd() *cobra.Command {
	aud := &cobra.Command{Use: "audit", Short: "Inspect the audit trail"}
	var action string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List audit records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				records, err := e.Repo.ListAudit(ctx, repo.AuditFilters{Action: action, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(records)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "At", "Actor", "Action", "Entity"})
				for _, rec := range records {
					actor := ""
					if rec.ActorID != nil {
						actor = *rec.ActorID
					}
					tw.AppendRow(table.Row{rec.ID, rec.At, actor, rec.Action, rec.Entity})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&action, "action", "", "action filter (LOCK, UNLOCK)")
	list.Flags().IntVar(&limit, "limit", 50, "max records")
	aud.AddCommand(list)
	return aud
}

// --- api keys ---

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if actorID == "" {
					actorID = viper.GetString("actor-id")
				}
				if _, err := e.Repo.GetUser(ctx, actorID); err != nil {
					return err
				}
				raw := make([]byte, 24)
				if _, err := rand.Read(raw); err != nil {
					return err
				}
				secret := "tck_" + hex.EncodeToString(raw)
				apiKey := domain.APIKey{
					ID:        uuid.New().String(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(secret),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertAPIKey(ctx, nil, apiKey); err != nil {
					return err
				}
				// The plaintext is shown once; only the hash is stored.
				fmt.Printf("id: %s\nkey: %s\n", apiKey.ID, secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates as")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer appCtx.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("TIMECARD_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyHeader,
			}
			if authCfg.JWTSecret == "" && !allowLegacyHeader {
				return fmt.Errorf("TIMECARD_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{
				Engine:   appCtx.Engine,
				Reports:  reports.Service{Repo: appCtx.Engine.Repo},
				BasePath: basePath,
				Auth:     authCfg,
			})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(appCtx.Engine)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Timecard API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyHeader, "allow-actor-header", false, "accept X-Actor-Id without auth (local use only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	appCtx, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer appCtx.Close()
	return fn(ctx, appCtx.Engine)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(header []string, rows [][]string) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func renderEntryTable(items []domain.TimesheetEntry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "User", "Project", "Date", "Hours", "Type", "Status"})
	for _, e := range items {
		tw.AppendRow(table.Row{e.ID, e.UserID, e.ProjectID, e.WorkDate, e.Hours, e.TaskType, e.Status})
	}
	tw.Render()
}
