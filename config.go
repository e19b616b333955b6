package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "ROOMBOX"

type Config struct {
	bind          string
	boltFile      string
	configFile    string
	databaseURL   string
	dataFile      string
	maxNameLength int
	port          int
	prefix        string
	profile       bool
	store         string
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if !slices.Contains(storeNames, c.store) {
		return fmt.Errorf("%w %q (must be one of %s)", ErrUnknownStore, c.store, strings.Join(storeNames, ", "))
	}
	if (c.store == storeSQLite || c.store == storePostgres) && c.databaseURL == "" {
		return fmt.Errorf("--database-url is required for the %s store", c.store)
	}
	if c.maxNameLength < 0 {
		return fmt.Errorf("invalid max name length (must be 0 or greater): %d", c.maxNameLength)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// applyConfigFile fills in any flag that was set neither on the command
// line nor through the environment from the file at path.
func applyConfigFile(path string, fs *pflag.FlagSet) error {
	if path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || f.Name == "config" || !v.IsSet(f.Name) {
			return
		}

		if setErr := fs.Set(f.Name, v.GetString(f.Name)); setErr != nil {
			err = fmt.Errorf("config %s: %s: %w", path, f.Name, setErr)
		}
	})

	return err
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "roombox",
		Short:         "A shared board for claiming one of ten rooms, packed in a single webapp.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigFile(cfg.configFile, cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: ROOMBOX_BIND)")
	fs.StringVar(&cfg.boltFile, "bolt-file", "bookings.db", "database file for the bolt store (env: ROOMBOX_BOLT_FILE)")
	fs.StringVarP(&cfg.configFile, "config", "c", "", "optional config file (yaml, toml or json) (env: ROOMBOX_CONFIG)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "sqlite path or postgres url for the sql stores (env: ROOMBOX_DATABASE_URL)")
	fs.StringVar(&cfg.dataFile, "data-file", "bookings.json", "json document for the file store (env: ROOMBOX_DATA_FILE)")
	fs.IntVar(&cfg.maxNameLength, "max-name-length", 64, "longest accepted name in characters, 0 for no limit (env: ROOMBOX_MAX_NAME_LENGTH)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: ROOMBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: ROOMBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: ROOMBOX_PROFILE)")
	fs.StringVar(&cfg.store, "store", storeFile, "booking backend: "+strings.Join(storeNames, ", ")+" (env: ROOMBOX_STORE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: ROOMBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: ROOMBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ROOMBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: ROOMBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("roombox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
