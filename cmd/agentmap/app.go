package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/agentmap/dashboard/config"
	"github.com/agentmap/dashboard/internal/domain"
	"github.com/agentmap/dashboard/internal/infrastructure/agentmap"
	"github.com/agentmap/dashboard/internal/logger"
	"github.com/agentmap/dashboard/internal/usecase"
	"github.com/agentmap/dashboard/internal/version"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// out receives encoded command output.
var out io.Writer = os.Stdout

const (
	urlFlag     = "url"
	formatFlag  = "format"
	debugFlag   = "debug"
	timeoutFlag = "timeout"
)

// globalFlags are shared by every subcommand.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    urlFlag,
			Usage:   "AgentMap API base URL (defaults to the configured remote.base_url)",
			Sources: cli.EnvVars("AGENTMAP_URL"),
		},
		&cli.StringFlag{
			Name:  formatFlag,
			Usage: "Output format [json, yaml]",
			Value: formatJSON,
		},
		&cli.BoolFlag{
			Name:  debugFlag,
			Usage: "Prints verbose logs to stderr",
		},
		&cli.DurationFlag{
			Name:  timeoutFlag,
			Usage: "Per-request timeout for AgentMap API calls",
		},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "agentmap",
		Usage:   "Register MSEs and match them to seller network participants",
		Version: fmt.Sprintf("%s (%s)", version.Version, version.Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			newHealthCmd(),
			newRegisterCmd(),
			newListCmd(),
			newGetCmd(),
			newMatchCmd(),
			newOptionsCmd(),
		},
	}
}

// env is everything a subcommand needs, resolved once from config and flags.
type env struct {
	cfg    *config.Config
	client *agentmap.Client
	log    *zap.Logger
	format string
}

func newEnv(cmd *cli.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if u := cmd.String(urlFlag); u != "" {
		cfg.Remote.BaseURL = u
	}
	if d := cmd.Duration(timeoutFlag); d > 0 {
		cfg.Remote.Timeout = d
	}

	level := "warn"
	if cmd.Bool(debugFlag) {
		level = "debug"
	}
	log, err := logger.New(level, "console")
	if err != nil {
		return nil, err
	}

	format := formatJSON
	switch cmd.String(formatFlag) {
	case formatYAML, "yml":
		format = formatYAML
	case formatJSON, "":
	default:
		return nil, fmt.Errorf("unsupported format %q, use json or yaml", cmd.String(formatFlag))
	}

	client := agentmap.NewClient(cfg.Remote.BaseURL, agentmap.Options{
		Timeout:           cfg.Remote.Timeout,
		RequestsPerSecond: cfg.Remote.RequestsPerSecond,
		Burst:             cfg.Remote.Burst,
		Logger:            log,
	})

	return &env{cfg: cfg, client: client, log: log, format: format}, nil
}

func (e *env) orchestrator() *usecase.Orchestrator {
	return usecase.NewOrchestrator(e.client, usecase.OrchestratorConfig{
		DefaultTopK: e.cfg.Matching.TopK,
		Timeout:     e.cfg.Matching.OrchestrationTimeout,
		Bands:       e.cfg.Matching.Bands,
	}, e.log)
}

func (e *env) encode(v any) error {
	if e.format == formatYAML {
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(v)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newHealthCmd() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Checks that the AgentMap API is reachable",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			h, err := e.client.Health(ctx)
			if err != nil {
				return err
			}
			return e.encode(h)
		},
	}
}

func newOptionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "options",
		Usage: "Lists the state and language options of the registration form",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			return e.encode(map[string]any{
				"states":    usecase.States,
				"languages": usecase.RegistrationLanguages,
			})
		},
	}
}

func newGetCmd() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Shows a single registered MSE",
		ArgsUsage: "<mse-id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := domain.ParseMSEID(cmd.Args().First())
			if err != nil {
				return err
			}
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			mse, err := e.client.GetMSE(ctx, id)
			if err != nil {
				return err
			}
			return e.encode(mse)
		},
	}
}

func newListCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Lists recently registered MSEs (the review queue)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "state", Usage: "Only MSEs in this state"},
			&cli.Int64Flag{Name: "limit", Usage: "Maximum number of MSEs", Value: domain.DefaultReviewLimit},
			&cli.Int64Flag{Name: "skip", Usage: "Number of MSEs to skip"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			mses, err := e.client.ListMSEs(ctx, domain.ListMSEsQuery{
				State: cmd.String("state"),
				Limit: int(cmd.Int64("limit")),
				Skip:  int(cmd.Int64("skip")),
			})
			if err != nil {
				return err
			}
			return e.encode(usecase.PresentMSEs(mses))
		},
	}
}

func newRegisterCmd() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Registers an MSE with the AgentMap API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "udyam", Usage: "Udyam registration number"},
			&cli.StringFlag{Name: "name", Usage: "Business name"},
			&cli.StringFlag{Name: "language", Usage: "Preferred language [en, hi, ta, te, kn]", Value: "en"},
			&cli.StringFlag{Name: "description", Usage: "What the business makes or sells"},
			&cli.StringFlag{Name: "state", Usage: "State"},
			&cli.StringFlag{Name: "district", Usage: "District"},
			&cli.StringFlag{Name: "pin-code", Usage: "PIN code"},
			&cli.StringFlag{Name: "nic-code", Usage: "NIC code"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}

			w := usecase.NewWizard(e.client, e.log)
			if err := w.Update(func(f *domain.MSERegistration) {
				f.UdyamNumber = cmd.String("udyam")
				f.Name = cmd.String("name")
				f.Language = cmd.String("language")
			}); err != nil {
				return err
			}
			w.Next()
			if err := w.Update(func(f *domain.MSERegistration) {
				f.Description = cmd.String("description")
				f.State = cmd.String("state")
				f.District = cmd.String("district")
				f.PinCode = cmd.String("pin-code")
				f.NICCode = cmd.String("nic-code")
			}); err != nil {
				return err
			}

			mse, err := w.Submit(ctx)
			if err != nil {
				return err
			}
			return e.encode(mse)
		},
	}
}
