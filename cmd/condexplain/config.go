package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nlstn/go-condbuilder/internal/render"
)

const envPrefix = "CONDEXPLAIN"

const (
	keyKey     = "key"
	idsKey     = "ids"
	whereKey   = "where"
	tableKey   = "table"
	dialectKey = "dialect"
	noInKey    = "no_in"
	maxInKey   = "max_in"
	goquKey    = "goqu"
	noColorKey = "no_color"
)

// explainConfig is the resolved command configuration.
type explainConfig struct {
	KeyColumns []string
	IDs        string
	Where      []string
	Table      string
	Dialects   []render.Dialect
	NoIn       bool
	MaxIn      int
	Goqu       bool
	NoColor    bool
}

// envNameFromConfigKey converts a config key into the environment variable
// that sets it.
func envNameFromConfigKey(key string) string {
	return envPrefix + "_" + strings.ToUpper(key)
}

// flagNameFromConfigKey converts a config key into its flag name.
func flagNameFromConfigKey(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func flagUsage(key, usage string) string {
	return fmt.Sprintf("%s (env %s)", usage, envNameFromConfigKey(key))
}

// configManager binds command flags and environment variables to config keys.
type configManager struct {
	viper   *viper.Viper
	command *cobra.Command
}

func newConfigManager(command *cobra.Command) configManager {
	man := configManager{viper: viper.New(), command: command}
	man.addString(keyKey, "id", "comma separated key columns")
	man.addString(idsKey, "", "comma separated identifiers, composite values joined with ':'")
	man.command.Flags().StringArray(flagNameFromConfigKey(whereKey), nil, flagUsage(whereKey, "additional raw condition, repeatable"))
	man.addString(tableKey, "s", "table to select from")
	man.addString(dialectKey, "all", "sqlite, postgres, mysql or all")
	man.addBool(noInKey, false, "render identifier filters as OR'd equalities")
	man.addInt(maxInKey, render.DefaultMaxInClauseSize, "maximum values per IN list")
	man.addBool(goquKey, false, "render the statement through goqu")
	man.addBool(noColorKey, false, "disable colored output")
	return man
}

func (man configManager) bind(key string) {
	_ = man.viper.BindPFlag(key, man.command.Flags().Lookup(flagNameFromConfigKey(key)))
	_ = man.viper.BindEnv(key, envNameFromConfigKey(key))
}

func (man configManager) addString(key, defVal, usage string) {
	man.command.Flags().String(flagNameFromConfigKey(key), defVal, flagUsage(key, usage))
	man.bind(key)
}

func (man configManager) addBool(key string, defVal bool, usage string) {
	man.command.Flags().Bool(flagNameFromConfigKey(key), defVal, flagUsage(key, usage))
	man.bind(key)
}

func (man configManager) addInt(key string, defVal int, usage string) {
	man.command.Flags().Int(flagNameFromConfigKey(key), defVal, flagUsage(key, usage))
	man.bind(key)
}

// load resolves the configuration. Flags win over environment variables.
func (man configManager) load() (explainConfig, error) {
	cfg := explainConfig{
		IDs:     man.viper.GetString(idsKey),
		Table:   man.viper.GetString(tableKey),
		NoIn:    man.viper.GetBool(noInKey),
		MaxIn:   man.viper.GetInt(maxInKey),
		Goqu:    man.viper.GetBool(goquKey),
		NoColor: man.viper.GetBool(noColorKey),
	}
	for _, column := range strings.Split(man.viper.GetString(keyKey), ",") {
		if column = strings.TrimSpace(column); column != "" {
			cfg.KeyColumns = append(cfg.KeyColumns, column)
		}
	}

	// Raw conditions may contain commas, so the flag is read as-is and the
	// environment variable holds a single condition.
	if flag := man.command.Flags().Lookup(flagNameFromConfigKey(whereKey)); flag != nil && flag.Changed {
		where, err := man.command.Flags().GetStringArray(flag.Name)
		if err != nil {
			return explainConfig{}, err
		}
		cfg.Where = where
	} else if where := os.Getenv(envNameFromConfigKey(whereKey)); where != "" {
		cfg.Where = []string{where}
	}

	dialect := man.viper.GetString(dialectKey)
	if strings.EqualFold(dialect, "all") {
		cfg.Dialects = render.Dialects
	} else {
		d, err := render.ParseDialect(dialect)
		if err != nil {
			return explainConfig{}, err
		}
		cfg.Dialects = []render.Dialect{d}
	}
	return cfg, nil
}
