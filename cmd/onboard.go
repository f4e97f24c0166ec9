package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/chatclaw/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboard(resolveConfigPath())
		},
	}
}

// runOnboard walks through the minimal config and writes it to cfgPath.
// Secrets are never written; the wizard prints the env vars to export.
func runOnboard(cfgPath string) error {
	cfg := config.Default()

	groupName := cfg.Group.Name
	keyword := cfg.Trigger.Keyword
	imagesEnabled := cfg.Images.Enabled
	aiEnabled := false
	aiBase := "https://api.openai.com/v1"
	aiModel := "gpt-4o-mini"
	commandsBase := ""
	httpEnabled := cfg.HTTP.Enabled
	httpPort := strconv.Itoa(cfg.HTTP.Port)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Group chat name").
				Description("The WeChat group the bot watches.").
				Value(&groupName).
				Validate(required("group name")),
			huh.NewInput().
				Title("Trigger keyword").
				Value(&keyword).
				Validate(required("keyword")),
			huh.NewConfirm().
				Title("Enable random image replies?").
				Value(&imagesEnabled),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable AI question answering?").
				Description("Needs CHATCLAW_OPENAI_API_KEY in the environment.").
				Value(&aiEnabled),
			huh.NewInput().
				Title("AI API base URL").
				Value(&aiBase),
			huh.NewInput().
				Title("AI model").
				Value(&aiModel),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Command API base URL").
				Description("Leave empty to disable dynamic commands.").
				Value(&commandsBase),
			huh.NewConfirm().
				Title("Enable the local control API?").
				Value(&httpEnabled),
			huh.NewInput().
				Title("Control API port").
				Value(&httpPort).
				Validate(func(s string) error {
					p, err := strconv.Atoi(s)
					if err != nil || p < 1 || p > 65535 {
						return fmt.Errorf("invalid port")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("onboarding aborted: %w", err)
	}

	cfg.Group.Name = groupName
	cfg.Trigger.Keyword = keyword
	cfg.Images.Enabled = imagesEnabled
	if aiEnabled {
		cfg.AI.APIBase = aiBase
		cfg.AI.Model = aiModel
	}
	cfg.Commands.APIBase = commandsBase
	cfg.HTTP.Enabled = httpEnabled
	cfg.HTTP.Port, _ = strconv.Atoi(httpPort)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Println()
	fmt.Printf("Config written to %s\n", cfgPath)
	if aiEnabled {
		fmt.Println()
		fmt.Println("Before starting, export your API key:")
		fmt.Println()
		fmt.Println("  export CHATCLAW_OPENAI_API_KEY=sk-...")
	}
	fmt.Println()
	fmt.Println("Start the bot with:  chatclaw")
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}
