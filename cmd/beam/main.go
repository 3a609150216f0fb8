package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/beamship/beam/cmd/beam/commands"
	"github.com/beamship/beam/cmd/beam/config"
)

var version = "v0.0.0-dev"

// rootCmd is the top level `beam` command on which the other subcommands are attached to.
var rootCmd = &cobra.Command{
	Use:   "beam",
	Short: "Beam shares files and directories from one computer to another through a local transfer engine.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlag("verbose", cmd.Flags().Lookup("verbose")); err != nil {
			return fmt.Errorf("binding verbose flag: %w", err)
		}
		return nil
	},
}

// Entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Initialization of cobra and viper.
func init() {
	cobra.OnInitialize(func() {
		if err := config.Init(); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	})

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug information to a `.beam-[command].log` file in the current directory")
	rootCmd.AddCommand(commands.Send())
	rootCmd.AddCommand(commands.Version(version))
}
