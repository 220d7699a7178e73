// Package cmd wires this server's command-line surface, spec §6: flag
// parsing via cobra, precedence (flag > environment > config file >
// default) via viper.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dd86k/aliceserver/internal/debugger/gdbmi"
	"github.com/dd86k/aliceserver/internal/logging"
	"github.com/dd86k/aliceserver/internal/protocol/dap"
	"github.com/dd86k/aliceserver/internal/protocol/mi"
	"github.com/dd86k/aliceserver/internal/session"
	"github.com/dd86k/aliceserver/internal/targetconfig"
	"github.com/dd86k/aliceserver/internal/transport"
)

// Version is the server's version string, reported by --ver/--version.
// Overridden at link time in release builds (-ldflags "-X ...Version=...").
var Version = "0.0.0-dev"

var adapterNames = []string{"dap", "mi", "mi2", "mi3", "mi4"}

var (
	cfgFile       string
	adapterFlag   string
	listAdapters  bool
	logEnabled    bool
	logFile       string
	logLevel      string
	verFlag       bool
	versionFlag   bool
)

// RootCmd is the aliceserver server command.
var RootCmd = &cobra.Command{
	Use:   "aliceserver [target] [-- target-args...]",
	Short: "Aliceserver is a debugger front-end server speaking DAP and GDB/MI.",
	Args:  cobra.ArbitraryArgs,
	RunE:  runServer,
}

// Execute runs RootCmd. Called once by main.main(). Exit codes follow
// spec §6: 1 for a CLI error, 2 for an unhandled fatal error (the
// latter is raised from inside runServer via os.Exit, never returned).
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aliceserver.yaml)")
	RootCmd.Flags().StringVarP(&adapterFlag, "adapter", "a", "dap", fmt.Sprintf("protocol adapter to speak (%s)", strings.Join(adapterNames, "|")))
	RootCmd.Flags().BoolVar(&listAdapters, "list-adapters", false, "list available adapters and exit")
	RootCmd.Flags().BoolVar(&logEnabled, "log", false, "enable structured logging")
	RootCmd.Flags().StringVar(&logFile, "logfile", "", "write logs to this file instead of stderr")
	RootCmd.Flags().StringVar(&logLevel, "loglevel", "info", "log level (trace|debug|info|warn|error)")
	RootCmd.Flags().BoolVar(&verFlag, "ver", false, "print the version string and exit")
	RootCmd.Flags().BoolVar(&versionFlag, "version", false, "print a multi-line version block and exit")
}

// initConfig reads the config file and environment variables, binding
// each flag to its viper key with flag > env > config-file > default
// precedence.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.SetConfigName(".aliceserver")
	viper.AddConfigPath("$HOME")
	viper.SetEnvPrefix("aliceserver")
	viper.AutomaticEnv()
	viper.SetConfigType("yaml")

	viper.BindPFlag("adapter", RootCmd.Flags().Lookup("adapter"))
	viper.BindPFlag("log", RootCmd.Flags().Lookup("log"))
	viper.BindPFlag("logfile", RootCmd.Flags().Lookup("logfile"))
	viper.BindPFlag("loglevel", RootCmd.Flags().Lookup("loglevel"))

	viper.SetDefault("adapter", "dap")
	viper.SetDefault("loglevel", "info")

	viper.RegisterAlias("log_level", "loglevel")
	viper.RegisterAlias("log_file", "logfile")

	if err := viper.ReadInConfig(); err == nil {
		logging.Banner("using config file: %v", viper.ConfigFileUsed())
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	if verFlag {
		fmt.Println(Version)
		return nil
	}
	if versionFlag {
		printVersionBlock()
		return nil
	}
	if listAdapters {
		for _, name := range adapterNames {
			fmt.Println(name)
		}
		return nil
	}

	adapterName := strings.ToLower(viper.GetString("adapter"))
	if !isKnownAdapter(adapterName) {
		return fmt.Errorf("unknown adapter %q (want one of %s)", adapterName, strings.Join(adapterNames, "|"))
	}

	// --log is opt-in (spec §6's ambient flag): without it, the engine
	// still gets a logger (it always needs one) but a quiet one, so a
	// plain interactive run stays quiet.
	level := viper.GetString("loglevel")
	if !viper.GetBool("log") {
		level = "error"
	}

	out := io.Writer(os.Stderr)
	if logfile := viper.GetString("logfile"); logfile != "" {
		f, err := logging.OpenLogFile(logfile)
		if err != nil {
			return fmt.Errorf("opening logfile: %w", err)
		}
		defer f.Close()
		out = f
	}

	return run(adapterName, args, logging.New("aliceserver", level, out))
}

func isKnownAdapter(name string) bool {
	for _, n := range adapterNames {
		if n == name {
			return true
		}
	}
	return false
}

func printVersionBlock() {
	fmt.Printf("aliceserver %s\n", Version)
	fmt.Printf("adapters: %s\n", strings.Join(adapterNames, ", "))
	fmt.Println("backend: gdbmi (github.com/cyrus-and/gdb)")
}

func run(adapterName string, args []string, log hclog.Logger) error {
	target := targetconfig.New()
	if len(args) > 0 {
		target.SetExecutable(args[0])
		if len(args) > 1 {
			target.SetArguments(args[1:])
		}
	}

	dbg, err := gdbmi.New(log)
	if err != nil {
		log.Error("failed to start gdb backend", "err", err)
		os.Exit(2)
	}

	engine := session.New(dbg, target, log)

	var adapter session.Adapter
	switch adapterName {
	case "dap":
		tr := transport.NewHTTP(os.Stdin, os.Stdout)
		adapter = dap.New(tr, log)
	case "mi", "mi2", "mi3", "mi4":
		version := mi.ParseVersion(parseMIVersionSuffix(adapterName))
		tr := transport.NewLine(os.Stdin, os.Stdout)
		adapter = mi.New(tr, version, fmt.Sprintf("Aliceserver %s", Version), log)
	}

	logging.BannerOk("starting %s adapter", adapter.Name())
	if err := engine.Run(adapter); err != nil {
		log.Error("session ended with error", "err", err)
		os.Exit(2)
	}
	return nil
}

// parseMIVersionSuffix extracts the numeric suffix from "mi2"/"mi3"/
// "mi4", and folds the bare "mi" alias (spec §6) to version 1, which
// mi.ParseVersion in turn folds to the latest version.
func parseMIVersionSuffix(name string) int {
	suffix := strings.TrimPrefix(name, "mi")
	if suffix == "" {
		return 1
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 1
	}
	return n
}
