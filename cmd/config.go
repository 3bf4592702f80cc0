package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chuanqi87/agent/internal/config"
	"github.com/chuanqi87/agent/internal/providers"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the LLM gateway configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for provider details.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("LLM Gateway Configuration Setup")
	color.Yellow("Follow the prompts to configure your provider.")

	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("\nProvider (%s): ", strings.Join(providers.Names(), ", "))
	providerName, _ := reader.ReadString('\n')
	providerName = strings.TrimSpace(providerName)

	if _, ok := providers.Lookup(providerName); !ok {
		return fmt.Errorf("unknown provider %q", providerName)
	}

	fmt.Print("API Key: ")
	apiKey, _ := reader.ReadString('\n')
	apiKey = strings.TrimSpace(apiKey)

	fmt.Print("Model (empty for provider default): ")
	model, _ := reader.ReadString('\n')
	model = strings.TrimSpace(model)

	fmt.Print("Enable agent tool loop? (y/N): ")
	agentAnswer, _ := reader.ReadString('\n')
	agentEnabled := strings.EqualFold(strings.TrimSpace(agentAnswer), "y")

	// Optional gateway API key
	fmt.Print("Gateway API Key (optional, for authentication): ")
	gatewayKey, _ := reader.ReadString('\n')
	gatewayKey = strings.TrimSpace(gatewayKey)

	cfg := &config.Config{
		Host:     config.DefaultHost,
		Port:     config.DefaultPort,
		APIKey:   gatewayKey,
		Provider: providerName,
		Providers: map[string]config.ProviderSettings{
			providerName: {
				APIKey: apiKey,
				Model:  model,
			},
		},
		Agent: config.AgentConfig{
			Enabled: agentEnabled,
		},
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start the gateway with: %s start", AppName)

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run '%s config init' to create one.", AppName)
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-15s: %s\n", "Host", cfg.Host)
	fmt.Printf("  %-15s: %d\n", "Port", cfg.Port)
	fmt.Printf("  %-15s: %s\n", "API Key", maskString(cfg.APIKey))
	fmt.Printf("  %-15s: %s\n", "Provider", cfg.Provider)
	fmt.Printf("  %-15s: %v\n", "Agent", cfg.Agent.Enabled)
	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.GetPath())

	fmt.Println("\nProviders:")
	for _, name := range providers.Names() {
		settings, ok := cfg.Providers[name]
		if !ok {
			continue
		}
		fmt.Printf("  - Name: %s\n", name)
		fmt.Printf("    API Key: %s\n", maskString(settings.APIKey))
		if settings.BaseURL != "" {
			fmt.Printf("    Base URL: %s\n", settings.BaseURL)
		}
		if settings.Model != "" {
			fmt.Printf("    Model: %s\n", settings.Model)
		}
		fmt.Println()
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return fmt.Errorf("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validation logic
	var errors []string

	if _, ok := providers.Lookup(cfg.Provider); !ok {
		errors = append(errors, fmt.Sprintf("unknown provider %q (known: %s)", cfg.Provider, strings.Join(providers.Names(), ", ")))
	}

	if settings := cfg.Providers[cfg.Provider]; settings.APIKey == "" {
		errors = append(errors, fmt.Sprintf("provider %q: API key is required", cfg.Provider))
	}

	for name := range cfg.Providers {
		if _, ok := providers.Lookup(name); !ok {
			errors = append(errors, fmt.Sprintf("providers table names unknown provider %q", name))
		}
	}

	if len(errors) > 0 {
		color.Red("Configuration validation failed:")
		for _, err := range errors {
			fmt.Printf("  - %s\n", err)
		}
		return fmt.Errorf("configuration validation failed")
	}

	color.Green("Configuration is valid!")
	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
