// Command sessionctl is a thin operator CLI over the session facade,
// useful for manual poking at a backend without writing a harness.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kagent-dev/codesession/internal/depctl"
	"github.com/kagent-dev/codesession/internal/envcfg"
	"github.com/kagent-dev/codesession/internal/executor"
	"github.com/kagent-dev/codesession/internal/executor/container"
	"github.com/kagent-dev/codesession/internal/executor/inprocess"
	"github.com/kagent-dev/codesession/internal/executor/subprocess"
	"github.com/kagent-dev/codesession/internal/logger"
	"github.com/kagent-dev/codesession/internal/session"
	"github.com/kagent-dev/codesession/internal/storage"
	"github.com/spf13/cobra"
)

var (
	backend   string
	basePath  string
	toolsPath string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sessionctl",
		Short: "Operate a code execution session from the command line",
	}
	root.PersistentFlags().StringVar(&backend, "backend", "inprocess", "Executor backend: inprocess, subprocess, container")
	root.PersistentFlags().StringVar(&basePath, "base-path", envcfg.StorageBasePath.Get(), "Base directory for the file storage backend")
	root.PersistentFlags().StringVar(&toolsPath, "tools-path", envcfg.ToolsPath.Get(), "Directory of CLI tool YAML definitions")

	root.AddCommand(
		newRunCmd(),
		newResetCmd(),
		newToolsCmd(),
		newSkillsCmd(),
		newArtifactsCmd(),
		newDepsCmd(),
	)
	return root
}

func withSession(ctx context.Context, fn func(*session.Session) error) error {
	logger.Init()

	reg := executor.NewRegistry()
	reg.Register("inprocess", func() executor.Executor { return inprocess.New() })
	reg.Register("subprocess", func() executor.Executor { return subprocess.New() })
	reg.Register("container", func() executor.Executor { return container.New(container.DefaultConfig()) })

	cfg := session.Config{
		Backend: backend,
		Registry: reg,
		StartConfig: executor.StartConfig{
			Storage:   storage.Access{File: &storage.FileAccess{BasePath: basePath}},
			ToolsPath: toolsPath,
			Deps: executor.DepsStartConfig{
				Installer:       depctl.NewExecInstaller("pip", []string{"install"}),
				MutationAllowed: func() bool { return envcfg.DepsRuntimeMutationAllowed.Get() },
			},
		},
	}

	sess, release, err := session.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer func() { _ = release(context.Background()) }()

	return fn(sess)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func newRunCmd() *cobra.Command {
	var timeoutSec float64
	cmd := &cobra.Command{
		Use:   "run <code>",
		Short: "Execute a snippet of code and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				res, err := s.Run(cmd.Context(), args[0], time.Duration(timeoutSec*float64(time.Second)))
				if err != nil {
					return err
				}
				printJSON(res)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&timeoutSec, "timeout", 0, "Timeout in seconds (0 disables it)")
	return cmd
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the session's execution state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				return s.Reset(cmd.Context())
			})
		},
	}
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tools", Short: "Inspect registered tools"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				printJSON(s.ListTools())
				return nil
			})
		},
	})
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				printJSON(s.SearchTools(args[0]))
				return nil
			})
		},
	}
	cmd.AddCommand(searchCmd)
	return cmd
}

func newSkillsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "skills", Short: "Manage skills"}

	cmd.AddCommand(&cobra.Command{
		Use:  "list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				out, err := s.ListSkills(cmd.Context())
				if err != nil {
					return err
				}
				printJSON(out)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:  "get <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				out, err := s.GetSkill(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printJSON(out)
				return nil
			})
		},
	})

	var limit int
	searchCmd := &cobra.Command{
		Use:  "search <query>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				out, err := s.SearchSkills(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				printJSON(out)
				return nil
			})
		},
	}
	searchCmd.Flags().IntVar(&limit, "limit", 5, "Maximum number of results")
	cmd.AddCommand(searchCmd)

	var description string
	var overwrite bool
	addCmd := &cobra.Command{
		Use:  "add <name> <source-file>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(s *session.Session) error {
				return s.AddSkill(cmd.Context(), args[0], string(source), description, overwrite)
			})
		},
	}
	addCmd.Flags().StringVar(&description, "description", "", "Skill description")
	addCmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite an existing skill of the same name")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:  "remove <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				ok, err := s.RemoveSkill(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printJSON(map[string]bool{"removed": ok})
				return nil
			})
		},
	})

	return cmd
}

func newArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "artifacts", Short: "Manage artifacts"}

	cmd.AddCommand(&cobra.Command{
		Use:  "list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				out, err := s.ListArtifacts(cmd.Context())
				if err != nil {
					return err
				}
				printJSON(out)
				return nil
			})
		},
	})

	var description string
	saveCmd := &cobra.Command{
		Use:  "save <name> <file>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return withSession(cmd.Context(), func(s *session.Session) error {
				return s.SaveArtifact(cmd.Context(), args[0], data, description, nil)
			})
		},
	}
	saveCmd.Flags().StringVar(&description, "description", "", "Artifact description")
	cmd.AddCommand(saveCmd)

	cmd.AddCommand(&cobra.Command{
		Use:  "load <name> <out-file>",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				rec, err := s.LoadArtifact(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return os.WriteFile(args[1], rec.Data, 0o644)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:  "delete <name>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				ok, err := s.DeleteArtifact(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printJSON(map[string]bool{"deleted": ok})
				return nil
			})
		},
	})

	return cmd
}

func newDepsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "deps", Short: "Manage runtime dependencies"}

	cmd.AddCommand(&cobra.Command{
		Use:  "list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				out, err := s.ListDeps(cmd.Context())
				if err != nil {
					return err
				}
				printJSON(out)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:  "add <spec>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				status, err := s.AddDep(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printJSON(map[string]string{"status": status})
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:  "remove <spec>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				ok, err := s.RemoveDep(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printJSON(map[string]bool{"removed": ok})
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:  "sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(s *session.Session) error {
				out, err := s.SyncDeps(cmd.Context())
				if err != nil {
					return err
				}
				printJSON(out)
				return nil
			})
		},
	})

	return cmd
}
