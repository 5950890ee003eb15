package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/netsim/scenario"
)

var validateConfigPath string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario file against the schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := os.ReadFile(validateConfigPath)
		if err != nil {
			return err
		}

		if err := scenario.Validate(data); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", validateConfigPath)

		return nil
	},
}

var exampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print the built-in CloudBiz scenario",
	Run: func(cmd *cobra.Command, _ []string) {
		_, _ = cmd.OutOrStdout().Write(scenario.DefaultYAML())
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "", "scenario file")
	_ = validateCmd.MarkFlagRequired("config")
}
