package main

import (
	"fmt"
	"path/filepath"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// InitScenario runs 'rdebug init' twice; the second run must not touch the file.
func InitScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "rdebug-init",
		Description: "Creates .vscode/launch.json and leaves it alone on a second run.",
		Tags:        []string{"rdebug", "init"},
		Steps: []harness.Step{
			harness.NewStep("First init creates the launch file", func(ctx *harness.Context) error {
				projectDir := ctx.NewDir("init-project")
				ctx.Set("project_dir", projectDir)
				ctx.Set("rdebug_home", ctx.NewDir("init-home"))

				argv, err := rdebugArgs(ctx.GetString("rdebug_home"), nil, "init")
				if err != nil {
					return err
				}
				cmd := ctx.Command("env", argv...).Dir(projectDir)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(0, result.ExitCode, "rdebug init should exit successfully"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "Created .vscode/launch.json", "init should report the new file"); err != nil {
					return err
				}

				content, err := fs.ReadString(filepath.Join(projectDir, ".vscode", "launch.json"))
				if err != nil {
					return fmt.Errorf("launch file was not written: %w", err)
				}
				ctx.Set("launch_content", content)
				if err := assert.Contains(content, `"rdebug: Remote Attach"`, "the attach configuration should be present"); err != nil {
					return err
				}
				return assert.Contains(content, `"rdebugRemotePath"`, "the remote path input should be present")
			}),
			harness.NewStep("Second init is a no-op", func(ctx *harness.Context) error {
				projectDir := ctx.GetString("project_dir")
				argv, err := rdebugArgs(ctx.GetString("rdebug_home"), nil, "init")
				if err != nil {
					return err
				}
				cmd := ctx.Command("env", argv...).Dir(projectDir)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(0, result.ExitCode, "second rdebug init should exit successfully"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "already has the rdebug configuration", "second run should change nothing"); err != nil {
					return err
				}

				content, err := fs.ReadString(filepath.Join(projectDir, ".vscode", "launch.json"))
				if err != nil {
					return err
				}
				return assert.Equal(ctx.GetString("launch_content"), content, "launch file should be byte-identical")
			}),
		},
	}
}

// InitCorruptScenario runs 'rdebug init' over a launch file that cannot be parsed.
func InitCorruptScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "rdebug-init-corrupt",
		Description: "Moves a malformed launch file aside and writes a fresh one.",
		Tags:        []string{"rdebug", "init"},
		Steps: []harness.Step{
			harness.NewStep("Init over a corrupt launch file", func(ctx *harness.Context) error {
				projectDir := ctx.NewDir("corrupt-project")
				launchPath := filepath.Join(projectDir, ".vscode", "launch.json")
				if err := fs.CreateDir(filepath.Dir(launchPath)); err != nil {
					return err
				}
				if err := fs.WriteString(launchPath, "{ this is not json"); err != nil {
					return err
				}

				argv, err := rdebugArgs(ctx.NewDir("corrupt-home"), nil, "init")
				if err != nil {
					return err
				}
				cmd := ctx.Command("env", argv...).Dir(projectDir)
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(0, result.ExitCode, "rdebug init should recover from a corrupt file"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "launch.json.bak", "init should name the backup"); err != nil {
					return err
				}

				backup, err := fs.ReadString(launchPath + ".bak")
				if err != nil {
					return fmt.Errorf("backup was not written: %w", err)
				}
				if err := assert.Equal("{ this is not json", backup, "backup should hold the original bytes"); err != nil {
					return err
				}

				content, err := fs.ReadString(launchPath)
				if err != nil {
					return err
				}
				return assert.Contains(content, `"rdebug: Remote Attach"`, "a fresh launch file should be written")
			}),
		},
	}
}
