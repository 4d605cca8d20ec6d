// Package cli implements the benor command-line utility.
package cli

import (
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relab/benor/logging"
)

// rootCmd represents the base command when called without any subcommands
var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "benor",
		Short: "A command-line utility for running Ben-Or consensus.",
		Long: `benor runs Ben-Or randomized binary consensus among a set of nodes.

To run a network of nodes on localhost, each behind its own HTTP server, use the 'benor run' command.
To run many seeded executions on a simulated network, use 'benor sim'.
Measurements written by 'benor run --output' can be plotted with 'benor plot'.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.benor.yaml)")

	rootCmd.PersistentFlags().String("log-level", "info", "sets the log level (debug, info, warn, error)")
	cobra.CheckErr(viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")))
	rootCmd.PersistentFlags().StringSlice("log-pkgs", []string{}, "set the log level on a per-package basis.")
	cobra.CheckErr(viper.BindPFlag("log-pkgs", rootCmd.PersistentFlags().Lookup("log-pkgs")))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// Search config in home directory with name ".benor" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".benor")
	}

	viper.SetEnvPrefix("benor")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}

	if err := setLogLevels(viper.GetString("log-level"), viper.GetStringSlice("log-pkgs")); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// setLogLevels sets the global log level and the per-package levels given as package:level strings.
func setLogLevels(level string, packageLevels []string) error {
	if _, ok := logging.ParseLevel(level); !ok {
		return fmt.Errorf("invalid log level %q", level)
	}
	logging.SetLogLevel(level)
	for _, packageLevel := range packageLevels {
		parts := strings.Split(packageLevel, ":")
		if len(parts) != 2 {
			return fmt.Errorf("log-pkgs flag must be a comma-separated list of package:level strings")
		}
		if _, ok := logging.ParseLevel(parts[1]); !ok {
			return fmt.Errorf("invalid log level %q for package %s", parts[1], parts[0])
		}
		logging.SetPackageLogLevel(parts[0], parts[1])
	}
	return nil
}
