package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"rollplane/internal/config"
	"rollplane/internal/db"
	"rollplane/internal/domain"
	"rollplane/internal/engine"
	"rollplane/internal/migrate"
	"rollplane/internal/repo"
	"rollplane/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "rp",
	Short: "Rollplane CLI",
	Long: `Rollplane compiles declarative database change plans into executable rollouts.
Core concepts:
- Workspace: your .rollplane directory holding only the database; settings live in rollplane.yml.
- Environment: a deployment ring (dev, staging, prod) that orders rollout stages.
- Instance: a database server registered in one environment, with a declared engine type.
- Project: owns databases, sheets, plans, and rollouts.
- Sheet: a stored SQL statement that change specs point at.
- Plan: ordered steps of specs (create database, change database, restore database).
- Rollout: the compiled pipeline; one stage per step, tasks wired by dependency edges.
- Event log: diary of changes, view with 'rp log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ROLLPLANE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "actor identifier (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(envCmd())
	rootCmd.AddCommand(instanceCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(databaseCmd())
	rootCmd.AddCommand(sheetCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(rolloutCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage workspace config",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default rollplane.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func envCmd() *cobra.Command {
	env := &cobra.Command{Use: "env", Short: "Manage environments"}
	env.AddCommand(envCreateCmd())
	env.AddCommand(envListCmd())
	return env
}

func envCreateCmd() *cobra.Command {
	var title string
	var sortOrder int
	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				env, err := e.CreateEnvironment(ctx, args[0], title, sortOrder, actorID(e))
				if err != nil {
					return err
				}
				return printJSONOrTable(env)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "display title")
	cmd.Flags().IntVar(&sortOrder, "sort-order", 0, "position in the deployment order")
	return cmd
}

func envListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListEnvironments(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func instanceCmd() *cobra.Command {
	inst := &cobra.Command{Use: "instance", Short: "Manage database instances"}
	inst.AddCommand(instanceCreateCmd())
	inst.AddCommand(instanceListCmd())
	return inst
}

func instanceCreateCmd() *cobra.Command {
	var environmentID, engineType, title, adminUser string
	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Register a database instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if environmentID == "" || engineType == "" {
				return fmt.Errorf("--environment and --engine required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inst, err := e.CreateInstance(ctx, args[0], environmentID, domain.EngineType(engineType), title, adminUser, actorID(e))
				if err != nil {
					return err
				}
				return printJSONOrTable(inst)
			})
		},
	}
	cmd.Flags().StringVar(&environmentID, "environment", "", "environment id")
	cmd.Flags().StringVar(&engineType, "engine", "", "engine type (MYSQL, POSTGRES, ...)")
	cmd.Flags().StringVar(&title, "title", "", "display title")
	cmd.Flags().StringVar(&adminUser, "admin-user", "", "admin user for owner grants")
	return cmd
}

func instanceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListInstances(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var title string
	var tenantMode bool
	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, args[0], title, tenantMode, actorID(e))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "display title")
	cmd.Flags().BoolVar(&tenantMode, "tenant-mode", false, "tenant mode project")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func databaseCmd() *cobra.Command {
	database := &cobra.Command{Use: "database", Short: "Manage databases"}
	database.AddCommand(databaseCreateCmd())
	database.AddCommand(databaseListCmd())
	return database
}

func databaseCreateCmd() *cobra.Command {
	var instanceID, projectID string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register an existing database on an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if instanceID == "" || projectID == "" {
				return fmt.Errorf("--instance and --project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.CreateDatabase(ctx, instanceID, args[0], projectID, actorID(e))
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&instanceID, "instance", "", "instance id")
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func databaseListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List databases in a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListDatabases(ctx, projectID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func sheetCmd() *cobra.Command {
	sheet := &cobra.Command{Use: "sheet", Short: "Manage SQL sheets"}
	sheet.AddCommand(sheetCreateCmd())
	sheet.AddCommand(sheetListCmd())
	return sheet
}

func sheetCreateCmd() *cobra.Command {
	var projectID, title, statement, file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a SQL sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				statement = string(data)
			}
			if statement == "" {
				return fmt.Errorf("--statement or --file required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateSheet(ctx, projectID, title, statement, actorID(e))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&title, "title", "", "sheet title")
	cmd.Flags().StringVar(&statement, "statement", "", "SQL statement")
	cmd.Flags().StringVar(&file, "file", "", "read statement from file")
	return cmd
}

func sheetListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sheets in a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSheets(ctx, projectID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func backupCmd() *cobra.Command {
	backup := &cobra.Command{Use: "backup", Short: "Manage backups"}
	backup.AddCommand(backupCreateCmd())
	backup.AddCommand(backupListCmd())
	return backup
}

func backupCreateCmd() *cobra.Command {
	var instanceID, databaseName, state string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a backup for a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if instanceID == "" || databaseName == "" {
				return fmt.Errorf("--instance and --database required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.CreateBackup(ctx, instanceID, databaseName, args[0], state, actorID(e))
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().StringVar(&instanceID, "instance", "", "instance id")
	cmd.Flags().StringVar(&databaseName, "database", "", "database name")
	cmd.Flags().StringVar(&state, "state", "", "backup state (default DONE)")
	return cmd
}

func backupListCmd() *cobra.Command {
	var instanceID, databaseName string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if instanceID == "" || databaseName == "" {
				return fmt.Errorf("--instance and --database required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListBackups(ctx, instanceID, databaseName)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&instanceID, "instance", "", "instance id")
	cmd.Flags().StringVar(&databaseName, "database", "", "database name")
	return cmd
}

func planCmd() *cobra.Command {
	plan := &cobra.Command{Use: "plan", Short: "Manage change plans"}
	plan.AddCommand(planCreateCmd())
	plan.AddCommand(planUpdateCmd())
	plan.AddCommand(planGetCmd())
	plan.AddCommand(planListCmd())
	return plan
}

// planFile is the on-disk shape accepted by 'rp plan create' and
// 'rp plan update'. Specs without an id are assigned one.
type planFile struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Steps       []domain.Step `json:"steps"`
}

func planCreateCmd() *cobra.Command {
	var projectID, title, file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a plan and compile its rollout",
		Long:  "Reads steps from a JSON or YAML file, compiles them into a pipeline, and persists both atomically.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || file == "" {
				return fmt.Errorf("--project and --file required")
			}
			var pf planFile
			if err := decodeFile(file, &pf); err != nil {
				return err
			}
			if title != "" {
				pf.Title = title
			}
			fillSpecIDs(pf.Steps)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plan, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
					ProjectID:   projectID,
					Title:       pf.Title,
					Description: pf.Description,
					Steps:       pf.Steps,
					CreatorID:   actorID(e),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(plan)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&title, "title", "", "plan title (overrides file)")
	cmd.Flags().StringVar(&file, "file", "", "path to plan steps (JSON or YAML)")
	return cmd
}

func planUpdateCmd() *cobra.Command {
	var projectID, file string
	cmd := &cobra.Command{
		Use:   "update <uid>",
		Short: "Update a plan's sheet references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || file == "" {
				return fmt.Errorf("--project and --file required")
			}
			uid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("plan uid %q: %w", args[0], err)
			}
			var pf planFile
			if err := decodeFile(file, &pf); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plan, err := e.UpdatePlan(ctx, projectID, uid, pf.Steps, actorID(e))
				if err != nil {
					return err
				}
				return printJSONOrTable(plan)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&file, "file", "", "path to updated plan steps (JSON or YAML)")
	return cmd
}

func planGetCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "get <uid>",
		Short: "Show a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			uid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("plan uid %q: %w", args[0], err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plan, err := e.GetPlan(ctx, projectID, uid)
				if err != nil {
					return err
				}
				return printJSONOrTable(plan)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func planListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans in a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				plans, err := e.ListPlans(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(plans)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"UID", "Title", "Rollout", "Updated"})
				for _, p := range plans {
					rollout := ""
					if p.PipelineUID != nil {
						rollout = fmt.Sprintf("%d", *p.PipelineUID)
					}
					tw.AppendRow(table.Row{p.UID, p.Title, rollout, p.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func rolloutCmd() *cobra.Command {
	rollout := &cobra.Command{Use: "rollout", Short: "Inspect rollouts"}
	rollout.AddCommand(rolloutGetCmd())
	return rollout
}

func rolloutGetCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "get <uid>",
		Short: "Show a rollout with its stages and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			uid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("rollout uid %q: %w", args[0], err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rollout, err := e.GetRollout(ctx, projectID, uid)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rollout)
				}
				fmt.Printf("%s (%s)\n", rollout.Title, engine.FormatRolloutName(projectID, rollout.UID))
				for _, stage := range rollout.Stages {
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.SetTitle(stage.Stage.Name)
					tw.AppendHeader(table.Row{"UID", "Task", "Type", "Status", "Blocked By"})
					for _, t := range stage.Tasks {
						blockedBy := make([]string, 0, len(t.BlockedBy))
						for _, from := range t.BlockedBy {
							blockedBy = append(blockedBy, fmt.Sprintf("%d", from))
						}
						tw.AppendRow(table.Row{t.UID, t.Name, t.Type, colorStatus(engine.RenderTaskStatus(t)), strings.Join(blockedBy, ",")})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: plans, rollouts, sheets, and metadata changes.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var projectID, evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, projectID, evtType)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&projectID, "project", "", "project filter")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Rollplane API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func actorID(e engine.Engine) string {
	if id := viper.GetString("actor-id"); id != "" {
		return id
	}
	return e.Config.Actor.ID
}

// decodeFile reads JSON or YAML into v. YAML goes through a JSON round-trip
// so the struct json tags apply.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if json.Valid(data) {
		return json.Unmarshal(data, v)
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return json.Unmarshal(jsonData, v)
}

func fillSpecIDs(steps []domain.Step) {
	for i := range steps {
		for j := range steps[i].Specs {
			if steps[i].Specs[j].ID == "" {
				steps[i].Specs[j].ID = uuid.NewString()
			}
		}
	}
}

func colorStatus(status string) string {
	switch status {
	case "DONE":
		return color.GreenString(status)
	case "RUNNING":
		return color.CyanString(status)
	case "FAILED":
		return color.RedString(status)
	case "PENDING_APPROVAL", "PENDING":
		return color.YellowString(status)
	case "SKIPPED", "CANCELED":
		return color.HiBlackString(status)
	}
	return status
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
