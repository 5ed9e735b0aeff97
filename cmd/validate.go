package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/strix/internal/config"
)

var printConfig bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without starting the agent.

Defaults are applied before validation, so the output of --print is the
exact effective configuration the agent would run with.

Examples:
  strix validate -c config.yml
  strix validate -c config.yml --print`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidateCommand()
	},
}

func init() {
	validateCmd.Flags().BoolVar(&printConfig, "print", false,
		"print the effective configuration after defaults")
	rootCmd.AddCommand(validateCmd)
}

func runValidateCommand() {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("VALID: source=%s sink=%s buffer=%dB\n",
		cfg.Source.Type, cfg.Sink.Type, cfg.Parser.BufferCapacity)

	if printConfig {
		out, err := yaml.Marshal(map[string]*config.Config{"strix": cfg})
		if err != nil {
			exitWithError("failed to render config", err)
		}
		os.Stdout.Write(out)
	}
}
