package cmd

import (
	"fmt"
	"os"

	"taskplane/pkg/client"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "taskctl",
	Short: "taskctl is a command line tool for operating a taskplane controller",
	Long: `taskctl is the command-line interface for the taskplane task dispatch engine.

A taskplane controller turns uploaded CSV files into jobs made of one task per
row. Agents register the sites they can serve, claim pending tasks and report
each outcome back. taskctl is the operator side of that loop.

Common workflows:

  Create a job from a CSV file:
    taskctl jobs create --site site-1 --price 10 --total 50 people.csv

  Follow a job's progress:
    taskctl jobs status <job-id> --watch

  See which agents are online:
    taskctl agents list --alive

  Stop and restart dispatch for every agent:
    taskctl control pause
    taskctl control resume

Configuration:
  Set the API endpoint and key via flags, environment variables or a config file:
    TASKPLANE_URL        Controller URL (default: http://localhost:6161)
    TASKPLANE_API_KEY    Shared API key`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".taskctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".taskctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "TASKPLANE_VARNAME"
	viper.SetEnvPrefix("TASKPLANE")
	viper.AutomaticEnv()
	viper.BindEnv("api_key", "TASKPLANE_API_KEY")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newClient builds an API client from the resolved url and api_key.
func newClient() *client.Client {
	return client.New(viper.GetString("url"), viper.GetString("api_key"))
}

// printError renders API errors with their status code.
func printError(cmd *cobra.Command, err error) {
	if apiErr, ok := err.(*client.APIError); ok {
		cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
		return
	}
	cmd.Printf("Error: %v\n", err)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.taskctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:6161", "taskplane controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("api-key", "k", "", "API key for authentication")
	viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))
}
