package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/olusolaa/vm-reconciler/internal/app"
	apperrors "github.com/olusolaa/vm-reconciler/internal/errors"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	platform  string
	manifest  string
	format    string
	reporter  string
	targets   string
	varFiles  []string
)

var rootCmd = &cobra.Command{
	Use:   "vm-reconciler",
	Short: "Drives virtual machines on a cloud control plane towards a declared state.",
	Long: `vm-reconciler reads a manifest of machines, each with an ensure state
(absent, present, running or stopped), compares it against the machines that
exist on the configured platform (Azure Resource Manager or AWS EC2) and
creates, destroys, starts or stops machines until the two agree.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile every machine declared in the manifest.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, false)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the actions apply would take without changing anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPass(cmd, true)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the machines that exist on the platform.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		if err := application.List(cmd.Context()); err != nil {
			printRunError(err)
			return err
		}
		return nil
	},
}

func runPass(cmd *cobra.Command, dryRun bool) error {
	if dryRun {
		viper.Set("settings.dry_run", true)
	}
	application, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	if _, err := application.Run(cmd.Context()); err != nil {
		printRunError(err)
		return err
	}
	return nil
}

func bootstrap(cmd *cobra.Command) (*app.Application, error) {
	application, err := app.BuildApplicationFromViper(cmd.Context(), viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Application initialization failed: %v\n", err)
		if appErr := (*apperrors.AppError)(nil); errors.As(err, &appErr) {
			if appErr.IsUserFacing {
				fmt.Fprintf(os.Stderr, "Error Details: %s\n", appErr.Message)
				if appErr.SuggestedAction != "" {
					fmt.Fprintf(os.Stderr, "Suggestion: %s\n", appErr.SuggestedAction)
				}
			}
		}
		return nil, err
	}
	return application, nil
}

func printRunError(err error) {
	userMsg, suggestion, _ := apperrors.GetUserFacingMessage(err)
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", userMsg)
	if suggestion != "" {
		fmt.Fprintf(os.Stderr, "Suggestion: %s\n", suggestion)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default is .vm-reconciler.yaml in the current or home directory)")
	flags.StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "", "Override log format (text, json)")
	flags.StringVar(&platform, "platform", "", "Override platform API (azure_arm, aws_ec2)")
	flags.StringVarP(&manifest, "manifest", "m", "", "Override manifest path (file or directory)")
	flags.StringVar(&format, "format", "", "Override manifest format (hcl, yaml, tfstate)")
	flags.StringVar(&reporter, "reporter", "", "Override report format (text, json)")
	flags.StringVar(&targets, "target", "", "Only reconcile these machines (comma separated)")
	flags.StringSliceVar(&varFiles, "var-file", nil, "HCL variables file, may be repeated")

	bindings := map[string]string{
		"settings.log_level":  "log-level",
		"settings.log_format": "log-format",
		"settings.reporter":   "reporter",
		"platform.type":       "platform",
		"manifest.path":       "manifest",
		"manifest.format":     "format",
		"manifest.var_files":  "var-file",
		"target":              "target",
	}
	for key, flag := range bindings {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(flag)))
	}

	viper.SetEnvPrefix("VMR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(applyCmd, planCmd, listCmd)
}

func initializeConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigName(".vm-reconciler")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using configuration file:", viper.ConfigFileUsed())
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Fprintln(os.Stderr, "Config file not found, using defaults and environment variables.")
		} else {
			return apperrors.Wrap(err, apperrors.CodeConfigReadError, "failed to read config file")
		}
	}

	return nil
}
