package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configKeys lists the settings vibe-burden reads, with a short description.
var configKeys = map[string]string{
	"run_id":              "default run id",
	"workers":             "samples processed in parallel",
	"progress":            "show a progress bar when loading tables",
	"verbose":             "debug logging",
	"sample.prefixes":     "prefixes stripped from sample ids (comma separated)",
	"csq.impact":          "CSQ field holding the impact class",
	"csq.gene":            "CSQ field holding the gene symbol",
	"csq.id":              "CSQ field holding the HGNC id",
	"csq.max_af":          "CSQ field holding the population MAX_AF",
	"duckdb.path":         "DuckDB database file",
	"duckdb.threads":      "DuckDB worker threads",
	"duckdb.memory_limit": "DuckDB memory limit, e.g. 8GB",
	"ledger.enabled":      "record destination claims in a ledger",
	"ledger.debug":        "log every ledger query",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-burden configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/" + configName + ".yaml.",
		Example: `  vibe-burden config                           # show effective config
  vibe-burden config set sample.prefixes TSHC_,E  # strip sample id prefixes
  vibe-burden config set duckdb.memory_limit 8GB
  vibe-burden config get csq.max_af`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigKeysCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(args[0])
		},
	}
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List known configuration keys",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			keys := make([]string, 0, len(configKeys))
			for k := range configKeys {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%-20s %s\n", k, configKeys[k])
			}
		},
	}
}

func runConfigShow() error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if f := viper.ConfigFileUsed(); f != "" {
		fmt.Printf("# %s\n", f)
	} else {
		fmt.Printf("# No config file; defaults shown. Config file: ~/%s.yaml\n", configName)
	}
	fmt.Print(string(out))
	return nil
}

// parseConfigValue converts a command-line value to the type stored for key.
func parseConfigValue(key, value string) any {
	if key == "sample.prefixes" {
		var out []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	switch value {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return value
}

func runConfigSet(key, value string) error {
	if _, ok := configKeys[key]; !ok {
		return fmt.Errorf("unknown config key %q (see: vibe-burden config keys)", key)
	}
	viper.Set(key, parseConfigValue(key, value))

	cfgFile, err := configFilePath()
	if err != nil {
		return err
	}
	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Println(val)
	return nil
}
