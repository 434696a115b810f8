package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/patdx/fly-watch/internal/config"
)

// ProfilesConfig holds all named notifier profiles and tracks which one is
// active.
type ProfilesConfig struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is a named set of notifier credentials. Values set in a profile
// override the environment.
type Profile struct {
	DiscordWebhookURL string `toml:"discord_webhook_url,omitempty"`
	TelegramBotToken  string `toml:"telegram_bot_token,omitempty"`
	TelegramChatID    string `toml:"telegram_chat_id,omitempty"`
}

func profilesConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "flywatch")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.toml"), nil
}

func loadProfilesConfig() (ProfilesConfig, error) {
	path, err := profilesConfigPath()
	if err != nil {
		return ProfilesConfig{}, err
	}
	var cfg ProfilesConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return ProfilesConfig{Profiles: map[string]Profile{}}, nil
		}
		return ProfilesConfig{}, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}

func saveProfilesConfig(cfg ProfilesConfig) error {
	path, err := profilesConfigPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// applyProfile overlays the named profile (or the active one when name is
// empty) onto the loaded config. No profiles file and no active profile is
// not an error; a missing named profile is.
func applyProfile(cfg *config.Config, name string) error {
	pc, err := loadProfilesConfig()
	if err != nil {
		return err
	}
	if name == "" {
		name = pc.Active
	}
	if name == "" {
		return nil
	}
	p, ok := pc.Profiles[name]
	if !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	if p.DiscordWebhookURL != "" {
		cfg.DiscordWebhookURL = p.DiscordWebhookURL
	}
	if p.TelegramBotToken != "" {
		cfg.TelegramBotToken = p.TelegramBotToken
		cfg.TelegramChatID = p.TelegramChatID
	}
	return nil
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage named notifier profiles",
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		discord, _ := cmd.Flags().GetString("discord-webhook")
		botToken, _ := cmd.Flags().GetString("telegram-token")
		chatID, _ := cmd.Flags().GetString("telegram-chat")

		if discord == "" && botToken == "" {
			return fmt.Errorf("profile needs --discord-webhook or --telegram-token")
		}
		if botToken != "" && chatID == "" {
			return fmt.Errorf("--telegram-token requires --telegram-chat")
		}

		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}
		cfg.Profiles[name] = Profile{
			DiscordWebhookURL: discord,
			TelegramBotToken:  botToken,
			TelegramChatID:    chatID,
		}
		if err := saveProfilesConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("profile %q added\n", name)
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}
		if _, ok := cfg.Profiles[name]; !ok {
			return fmt.Errorf("profile %q not found", name)
		}
		delete(cfg.Profiles, name)
		if cfg.Active == name {
			cfg.Active = ""
		}
		if err := saveProfilesConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("profile %q removed\n", name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}
		if len(cfg.Profiles) == 0 {
			fmt.Println("no profiles configured")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tCHANNEL")
		for name, p := range cfg.Profiles {
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			channel := "telegram"
			if p.DiscordWebhookURL != "" {
				channel = "discord"
			}
			fmt.Fprintf(w, "%s%s\t%s\n", marker, name, channel)
		}
		return w.Flush()
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}
		if _, ok := cfg.Profiles[name]; !ok {
			return fmt.Errorf("profile %q not found", name)
		}
		cfg.Active = name
		if err := saveProfilesConfig(cfg); err != nil {
			return err
		}
		fmt.Printf("active profile set to %q\n", name)
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show details for a profile (defaults to active)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfilesConfig()
		if err != nil {
			return err
		}

		name := cfg.Active
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			return fmt.Errorf("no active profile; specify a name or run 'flywatch profile use <name>'")
		}

		p, ok := cfg.Profiles[name]
		if !ok {
			return fmt.Errorf("profile %q not found", name)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		active := ""
		if name == cfg.Active {
			active = " (active)"
		}
		fmt.Fprintf(w, "name:\t%s%s\n", name, active)
		if p.DiscordWebhookURL != "" {
			fmt.Fprintf(w, "discord_webhook_url:\t%s\n", maskSecret(p.DiscordWebhookURL))
		}
		if p.TelegramBotToken != "" {
			fmt.Fprintf(w, "telegram_bot_token:\t%s\n", maskSecret(p.TelegramBotToken))
			fmt.Fprintf(w, "telegram_chat_id:\t%s\n", p.TelegramChatID)
		}
		return w.Flush()
	},
}

func maskSecret(s string) string {
	if len(s) <= 12 {
		return strings.Repeat("*", len(s))
	}
	return s[:12] + strings.Repeat("*", 8)
}

func init() {
	profileAddCmd.Flags().String("discord-webhook", "", "Discord webhook URL")
	profileAddCmd.Flags().String("telegram-token", "", "Telegram bot token")
	profileAddCmd.Flags().String("telegram-chat", "", "Telegram chat ID")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileShowCmd)

	rootCmd.AddCommand(profileCmd)
}
