// Package config loads sync settings from config.env and the environment,
// with environment variables taking precedence over the file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	GridMaster  string
	NetworkView string
	Username    string
	Password    string
	CSVFile     string
	PropCSVFile string
	// PostgresConnectionString enables run-history recording when set.
	PostgresConnectionString string
}

// Load reads the given env file if it exists and then the environment.
// Missing required values are reported together so the operator fixes them
// in one pass.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			err := godotenv.Load(envFile)
			if err != nil {
				return nil, fmt.Errorf("Error loading %s: %s", envFile, err)
			}
		}
	}

	cfg := &Config{
		GridMaster:               os.Getenv("GRID_MASTER"),
		NetworkView:              os.Getenv("NETWORK_VIEW"),
		Username:                 os.Getenv("INFOBLOX_USERNAME"),
		Password:                 os.Getenv("PASSWORD"),
		CSVFile:                  os.Getenv("CSV_FILE"),
		PropCSVFile:              os.Getenv("PROP_CSV_FILE"),
		PostgresConnectionString: os.Getenv("POSTGRES_CONNECTION_STRING"),
	}
	if cfg.NetworkView == "" {
		cfg.NetworkView = "default"
	}
	if cfg.CSVFile == "" {
		cfg.CSVFile = "vpc_data.csv"
	}
	if cfg.PropCSVFile == "" {
		cfg.PropCSVFile = "modified_properties_file.csv"
	}

	missing := []string{}
	if cfg.GridMaster == "" {
		missing = append(missing, "GRID_MASTER")
	}
	if cfg.Username == "" {
		missing = append(missing, "INFOBLOX_USERNAME")
	}
	if cfg.Password == "" {
		missing = append(missing, "PASSWORD")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s environment variables are required", strings.Join(missing, ", "))
	}
	return cfg, nil
}
