package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
	"github.com/zatekoja/dentalplan/internal/staging"
)

// newRootCmd builds the stagectl command tree. Flag values can also come from
// STAGECTL_* environment variables, e.g. STAGECTL_OUTPUT=yaml.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("stagectl")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "stagectl",
		Short: "Stage dental treatment plans offline",
		Long: `stagectl runs the treatment plan staging engine without the API server.

It stages treatment files, prints the default clinic configuration and checks
clinic override files before they are uploaded.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.AddCommand(newStageCmd(v))
	rootCmd.AddCommand(newDefaultsCmd(v))
	rootCmd.AddCommand(newValidateCmd(v))
	return rootCmd
}

func newStageCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Stage a treatment file and print the plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readTreatments(v.GetString("input"), cmd.InOrStdin())
			if err != nil {
				return err
			}

			overrides := req.Config
			if path := v.GetString("config"); path != "" {
				fileOverrides, err := readClinicOverrides(path)
				if err != nil {
					return err
				}
				// request overrides in the treatment file win over the clinic file
				overrides = fileOverrides.Merge(req.Config)
			}

			plan, err := staging.NewEngine().Stage(req.Treatments, overrides)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), v.GetString("output"), plan)
		},
	}

	cmd.Flags().StringP("input", "i", "-", "treatments file (.json, .yaml or - for stdin)")
	cmd.Flags().StringP("config", "c", "", "clinic override file (.yaml or .json)")
	cmd.Flags().StringP("output", "o", "json", "output format: json or yaml")
	bindFlags(v, cmd, "input", "config", "output")
	return cmd
}

func newDefaultsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Print the default clinic configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(cmd.OutOrStdout(), v.GetString("output"), entities.DefaultClinicConfiguration())
		},
	}

	cmd.Flags().StringP("output", "o", "yaml", "output format: json or yaml")
	bindFlags(v, cmd, "output")
	return cmd
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a clinic override file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("config")
			if path == "" {
				return fmt.Errorf("--config is required")
			}

			overrides, err := readClinicOverrides(path)
			if err != nil {
				return err
			}
			if err := overrides.ApplyTo(entities.DefaultClinicConfiguration()).Validate(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", path)
			return nil
		},
	}

	cmd.Flags().StringP("config", "c", "", "clinic override file (.yaml or .json)")
	bindFlags(v, cmd, "config")
	return cmd
}

// bindFlags binds flags when the command runs so subcommands sharing a flag
// name do not overwrite each other's binding
func bindFlags(v *viper.Viper, cmd *cobra.Command, names ...string) {
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		for _, name := range names {
			if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
				return err
			}
		}
		return nil
	}
}
