package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DaaanielTV/hosting-club-discord-bot/internal/config"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/logger"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/platforms/discord"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/provision"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/pterodactyl"
	"github.com/DaaanielTV/hosting-club-discord-bot/internal/quota"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "hosting-club-bot",
	Short: "Discord bot that provisions Pterodactyl servers for members",
	Long: `hosting-club-bot runs the guided /server create flow: members pick a
server type, enter their panel credentials step by step, and the bot
creates the panel account and server for them.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	RunE: runBot,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info",
		"Log level: trace, debug, info, warn, error, fatal, panic")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (default: .hostingclub.yaml next to the executable)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Logging.Level != "" && !cmd.Flags().Changed("log") {
		if level, err := logger.ParseLevel(cfg.Logging.Level); err == nil {
			logger.SetLevel(level)
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store, err := openQuotaStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open quota store: %w", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	platform, err := discord.New(discord.Config{
		Token:     cfg.Discord.Token,
		ChannelID: cfg.Discord.ChannelID,
		RoleID:    cfg.Discord.RoleID,
		Types:     cfg.ServerTypes,
	})
	if err != nil {
		return err
	}

	machine := provision.New(provision.Config{
		Provisioner: pterodactyl.NewClient(cfg.Pterodactyl.APIURL, cfg.Pterodactyl.APIKey),
		Quota:       store,
		Reporter:    platform,
		Roles:       platform,
		Types:       cfg.ServerTypes,
		MaxServers:  cfg.Provision.MaxServersPerUser,
		LocationID:  cfg.Provision.LocationID,
	})
	platform.SetMachine(machine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := platform.Start(ctx); err != nil {
		return err
	}
	defer platform.Stop()

	janitor := provision.NewJanitor(machine, cfg.Provision.SessionTTL())
	if err := janitor.Start(); err != nil {
		return fmt.Errorf("failed to start session janitor: %w", err)
	}
	defer janitor.Stop()

	logger.Info("[Bot] Running; flow channel %s, cap %d servers/user",
		cfg.Discord.ChannelID, cfg.Provision.MaxServersPerUser)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("[Bot] Shutting down")
	return nil
}

func openQuotaStore(cfg *config.Config) (quota.Store, error) {
	path := cfg.Quota.ResolvedPath()
	switch cfg.Quota.Backend {
	case "json":
		return quota.NewFileStore(path)
	default:
		return quota.NewSQLiteStore(path)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
