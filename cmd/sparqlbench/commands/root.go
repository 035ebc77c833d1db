package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"sparqlbench/pkg/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var rootCmd = &cobra.Command{
	Use:          "sparqlbench",
	Short:        "Benchmark, soak and stress test SPARQL endpoints",
	SilenceUsage: true,
}

var (
	workdir    = "." // root to search the main configuration file in
	mainConfig = ""
)

func init() {
	viper.SetEnvPrefix("SPARQLBENCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&workdir, "workdir", "w", ".", "Root directory to load configuration files from")
	flags.StringVarP(&mainConfig, "config", "c", "", "Path to the configuration file (defaults to sparqlbench.yaml, .yml or .toml in the workdir)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Write logs as JSON")
	viper.BindPFlag("log-level", flags.Lookup("log-level"))
	viper.BindPFlag("log-json", flags.Lookup("log-json"))
}

func Execute() error {
	rootCmd.AddCommand(runCmd("benchmark", "Run a benchmark: warmups, a fixed number of mix runs, outliers trimmed"))
	rootCmd.AddCommand(runCmd("soak", "Run the mix repeatedly until the run count or runtime limit is reached"))
	rootCmd.AddCommand(runCmd("stress", "Ramp up concurrent clients until the client or runtime limit is reached"))
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(remoteCmd())
	return rootCmd.Execute()
}

func newLogger() (*zap.SugaredLogger, error) {
	return logging.New(viper.GetString("log-level"), viper.GetBool("log-json"))
}

// configPath returns the configuration file to use, or "" if none exists.
func configPath() string {
	if mainConfig != "" {
		return mainConfig
	}

	rootDir := workdir
	if rootDir == "" {
		rootDir = "."
	}
	for _, file := range []string{"sparqlbench.yaml", "sparqlbench.yml", "sparqlbench.toml"} {
		fullPath := filepath.Join(rootDir, file)
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath
		}
	}
	return ""
}

// configDir is the directory relative paths in the configuration file are
// resolved against.
func configDir() string {
	path := configPath()
	if path == "" || path == "-" {
		return workdir
	}
	return filepath.Dir(path)
}

// readConfigFile decodes the document at selector (a dotted path, empty for
// the whole file). Documents are converted to JSON before decoding, so
// configuration types only need json tags.
func readConfigFile[T any](selector string) (cfg T, err error) {
	path := configPath()
	if path == "" {
		return cfg, nil
	}

	var doc any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		doc, err = readTomlConfig(path, selector)
	default:
		doc, err = readYamlConfig(path, selector)
	}
	if err != nil {
		return cfg, err
	}
	if doc == nil {
		return cfg, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return cfg, fmt.Errorf("convert config file: %w", err)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return cfg, nil
}

func readYamlConfig(path, selector string) (doc any, err error) {
	var in *os.File
	if path == "-" {
		in = os.Stdin
	} else {
		in, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer in.Close()
	}

	if selector != "" {
		var p *yaml.Path
		p, err = yaml.PathString(fmt.Sprintf("$.%s", selector))
		if err != nil {
			return nil, fmt.Errorf("invalid config selector %q: %w", selector, err)
		}
		err = p.Read(in, &doc)
	} else {
		err = yaml.NewDecoder(in).Decode(&doc)
	}

	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode yaml config file: %w", err)
	}
	return doc, nil
}

func readTomlConfig(path, selector string) (any, error) {
	var doc map[string]any
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("decode toml config file: %w", err)
	}
	if selector == "" {
		return doc, nil
	}

	var cur any = doc
	for _, key := range strings.Split(selector, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config selector %q not found", selector)
		}
		if cur, ok = m[key]; !ok {
			return nil, fmt.Errorf("config selector %q not found", selector)
		}
	}
	return cur, nil
}
