// cmd/tools/flow-registry/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"leadflow/internal/capability"
	"leadflow/internal/common/config"
	"leadflow/internal/common/database"
	"leadflow/internal/common/logger"
	"leadflow/internal/flow"
	"leadflow/internal/installations"
	"leadflow/internal/llm"
	"leadflow/internal/workers"
	"leadflow/pkg/registry"

	"github.com/elastic/go-elasticsearch/v8"
)

const defaultPath = "configs/flows.json"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		help(out)
		return errors.New("a command is required")
	}

	switch args[0] {
	case "set":
		fs := flag.NewFlagSet("set", flag.ContinueOnError)
		path := fs.String("path", defaultPath, "Path to the flow file")
		team := fs.String("team", "", "Slack team id (e.g., T01ABCDE123)")
		dataSource := fs.String("dataSource", "", "Data source capability or alias (e.g., postgresql)")
		crm := fs.String("crm", "", "CRM capability or alias (e.g., zoho)")
		channel := fs.String("notificationChannel", "", "Notification capability or alias (e.g., gmail)")
		description := fs.String("description", "", "Description")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *team == "" || *dataSource == "" || *crm == "" || *channel == "" {
			fs.Usage()
			return errors.New("team, dataSource, crm and notificationChannel are required for set")
		}
		err := setFlow(*path, registry.Flow{
			TeamID:              *team,
			DataSource:          *dataSource,
			CRM:                 *crm,
			NotificationChannel: *channel,
			Description:         *description,
		})
		if err != nil {
			return fmt.Errorf("set flow: %w", err)
		}
		fmt.Fprintf(out, "Saved flow for team %s\n", *team)

	case "remove":
		fs := flag.NewFlagSet("remove", flag.ContinueOnError)
		path := fs.String("path", defaultPath, "Path to the flow file")
		team := fs.String("team", "", "Slack team id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *team == "" {
			return errors.New("team is required for remove")
		}
		if err := removeFlow(*path, *team); err != nil {
			return fmt.Errorf("remove flow: %w", err)
		}
		fmt.Fprintf(out, "Removed flow for team %s\n", *team)

	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		path := fs.String("path", defaultPath, "Path to the flow file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		reg, err := registry.LoadRegistry(*path)
		if err != nil {
			return fmt.Errorf("flow validation failed: %w", err)
		}
		fmt.Fprintf(out, "Flow validation passed. Found %d flows.\n", len(reg.Flows))

	case "show":
		fs := flag.NewFlagSet("show", flag.ContinueOnError)
		path := fs.String("path", defaultPath, "Path to the flow file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		reg, err := registry.LoadRegistry(*path)
		if err != nil {
			return err
		}
		printTable(out, flow.BuildTable(nil, reg))

	case "check":
		fs := flag.NewFlagSet("check", flag.ContinueOnError)
		path := fs.String("path", defaultPath, "Path to the flow file")
		configPath := fs.String("config", "", "Optional config.yaml whose flows and integrations are applied")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		issues, err := checkFlows(*path, *configPath)
		if err != nil {
			return err
		}
		for _, issue := range issues {
			fmt.Fprintln(out, issue.String())
		}
		if len(issues) > 0 {
			return fmt.Errorf("%d flow slots do not resolve to a registered capability", len(issues))
		}
		fmt.Fprintln(out, "Every flow resolves to registered capabilities.")

	case "help":
		help(out)

	default:
		help(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

// setFlow upserts f, creating the file with a default entry when missing.
func setFlow(path string, f registry.Flow) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		reg = &registry.FlowRegistry{Version: "1.0.0"}
		def := flow.DefaultTable()[flow.DefaultTeam]
		reg.Upsert(registry.Flow{
			TeamID:              flow.DefaultTeam,
			DataSource:          def.DataSource,
			CRM:                 def.CRM,
			NotificationChannel: def.NotificationChannel,
		})
	}

	reg.Upsert(f)
	if err := reg.Validate(); err != nil {
		return err
	}
	return save(path, reg)
}

func removeFlow(path, team string) error {
	if strings.EqualFold(team, flow.DefaultTeam) {
		return fmt.Errorf("%s cannot be removed", flow.DefaultTeam)
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}

	kept := reg.Flows[:0]
	for _, f := range reg.Flows {
		if !strings.EqualFold(f.TeamID, team) {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(reg.Flows) {
		return fmt.Errorf("no flow for team %s", team)
	}
	reg.Flows = kept
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return save(path, reg)
}

// checkFlows builds the capability registry the way the agent does, without
// touching any backend, and checks the effective flow table against it.
func checkFlows(path, configPath string) ([]capability.FlowIssue, error) {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, err
	}

	// sql.Open is lazy; nothing is dialled.
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	defer pg.Close()

	// Without a config every backend is assumed; with one, Elasticsearch
	// counts only when enabled, as in the agent.
	var es *elasticsearch.Client
	if configPath == "" || cfg.Database.Elasticsearch.Enabled {
		ec, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		es = ec.Client
	}

	// Skipped capabilities are reported on stderr.
	log := logger.NewStructured("warn", "console")
	set, err := workers.NewRegistry(workers.Dependencies{
		Config: cfg,
		Logger: log,
		LLM: llm.InferFunc(func(ctx context.Context, system, user string) (string, error) {
			return "", errors.New("no model in check mode")
		}),
		DB:            pg.DB,
		Elasticsearch: es,
		Installations: installations.NewStore(pg.DB, nil, installations.Options{Logger: log}),
	})
	if err != nil {
		return nil, err
	}
	return set.Registry.CheckFlows(flow.BuildTable(cfg.Flows, reg)), nil
}

func save(path string, reg *registry.FlowRegistry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return registry.SaveRegistry(path, reg)
}

func printTable(out io.Writer, table map[string]flow.Config) {
	teams := make([]string, 0, len(table))
	for team := range table {
		teams = append(teams, team)
	}
	sort.Strings(teams)

	fmt.Fprintf(out, "%-20s %-16s %-10s %s\n", "TEAM", "DATA SOURCE", "CRM", "NOTIFICATION")
	for _, team := range teams {
		c := table[team]
		fmt.Fprintf(out, "%-20s %-16s %-10s %s\n", team, c.DataSource, c.CRM, c.NotificationChannel)
	}
}

func help(out io.Writer) {
	fmt.Fprintln(out, `
Usage: flow-registry <command> [flags]

Commands:
  set       Add or replace a team's flow
  remove    Remove a team's flow
  validate  Validate the flow file
  show      Print the effective flow table
  check     Check every flow slot against the capability registry
  help      Show this help message

Examples:
  flow-registry set -team T01ABCDE123 -dataSource elasticsearch -crm odoo -notificationChannel outlook
  flow-registry remove -team T01ABCDE123
  flow-registry validate -path configs/flows.json
  flow-registry check -path configs/flows.json -config configs/config.yaml

Use 'flow-registry <command> -h' for more information about a command.`)
}
