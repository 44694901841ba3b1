// Command scout runs the civic signal scout: fetch/extract/dedup/story
// pipeline (§4), the investigation and response-finding side passes, and
// the out-of-band supervisor agent (§4.12), all driven by city profiles
// under --config-dir.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/civic-scout/scout/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

var configDir string

var rootCmd = &cobra.Command{
	Use:     "scout",
	Short:   "Civic signal scout: ingestion, investigation, and story synthesis",
	Version: version.Full(),
}

func main() {
	envPath := getEnv("SCOUT_ENV_FILE", ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("no .env file at %s, continuing with existing environment", envPath)
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"), "directory of city profile YAML files")

	rootCmd.AddCommand(runCmd, superviseCmd, migrateCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
