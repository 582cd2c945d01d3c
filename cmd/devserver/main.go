package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/CZERTAINLY/devserver/internal/log"
	"github.com/CZERTAINLY/devserver/internal/model"
	"github.com/CZERTAINLY/devserver/internal/service"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFileName = "devserver.yaml"

var (
	userConfigPath string // /default/config/path/devserver on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	logCloser      io.Closer

	errDevServerExited = errors.New("dev server exited")
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "devserver")
}

func main() {
	// root flags, DEVSERVER_CONFIG and DEVSERVER_VERBOSE are honored too
	rootCmd.PersistentFlags().String("config", "", "Config file to load - default is "+configFileName+" in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose logging")
	viper.SetEnvPrefix("devserver")
	for _, key := range []string{"config", "verbose"} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key)); err != nil {
			panic(err)
		}
		if err := viper.BindEnv(key); err != nil {
			panic(err)
		}
	}

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initDevServer

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, rootCmd)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// execute runs cmd and closes the log afterwards, cobra skips
// post run hooks when the command fails.
func execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "devserver failed", "err", err)
	}
	if cerr := closeLog(); cerr != nil {
		fmt.Fprintf(os.Stderr, "closing log: %v\n", cerr)
	}
	return err
}

var rootCmd = &cobra.Command{
	Use:          "devserver",
	Short:        "Supervises a front-end dev server and reports the url it listens on",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run starts the dev server, announces its url and stops it on interrupt",
	RunE:  doRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a devserver",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("devserver: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:    %s\n", configPath)
		}
		fmt.Printf("devserver: %s\n", info.Main.Version)
		fmt.Printf("go:        %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:    %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:      %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:     %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("cli",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	readyTimeout, err := config.DevServer.ReadyTimeout()
	if err != nil {
		return err
	}

	announcers, err := service.Announcers(ctx, config.Service.Announce)
	if err != nil {
		return fmt.Errorf("initializing announcers: %w", err)
	}
	defer service.CloseAnnouncers(ctx, announcers)

	devServer := service.NewDevServer()
	err = devServer.Start(ctx, service.CommandFromConfig(config.DevServer))
	if err != nil {
		return err
	}
	defer func() {
		devServer.Stop()
		if err := devServer.Wait(); err != nil {
			slog.ErrorContext(ctx, "dev server stop", "error", err)
		}
	}()

	readyCtx := ctx
	if readyTimeout > 0 {
		var cancel context.CancelFunc
		readyCtx, cancel = context.WithTimeout(ctx, readyTimeout)
		defer cancel()
	}
	u, err := devServer.WaitUntilReady(readyCtx)
	if err != nil {
		if ctx.Err() != nil {
			slog.InfoContext(ctx, "interrupted before the dev server was ready")
			return nil
		}
		return fmt.Errorf("waiting for dev server: %w", err)
	}

	err = service.Announce(ctx, announcers, u)
	if err != nil {
		return fmt.Errorf("announcing url: %w", err)
	}

	select {
	case <-ctx.Done():
	case <-devServer.Done():
	}
	if ctx.Err() != nil {
		slog.InfoContext(ctx, "stopping dev server", "session", devServer.ID().String())
		return nil
	}
	return fmt.Errorf("%w: exit code %d", errDevServerExited, devServer.ExitCode())
}

func initDevServer(cmd *cobra.Command, _ []string) error {
	configPath = viper.GetString("config")
	if configPath == "" {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, configFileName)
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig(cmd.Context())
		configPath = filepath.Join(userConfigPath, configFileName)
		err := os.MkdirAll(filepath.Dir(configPath), 0755)
		if err != nil {
			return fmt.Errorf("creating directory %s: %w", filepath.Dir(configPath), err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("creating file %s: %w", configPath, err)
		}
		defer func() {
			_ = f.Close()
		}()
		enc := yaml.NewEncoder(f)
		err = enc.Encode(config)
		if err != nil {
			return fmt.Errorf("storing configuration: %w", err)
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.CueErrDetails(err) {
				slog.Error("invalid configuration", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// --verbose has a precedence over config file
	if viper.GetBool("verbose") {
		config.Service.Verbose = true
	}

	logger, closer, err := log.New(config.Service.Verbose, config.Service.Log)
	if err != nil {
		return err
	}
	logCloser = closer
	slog.SetDefault(logger)

	slog.Debug("devserver run", "configPath", configPath)
	slog.Debug("devserver run", "config", config)
	return nil
}

// closeLog closes a file log destination, it is safe to call it twice.
func closeLog() error {
	if logCloser == nil {
		return nil
	}
	err := logCloser.Close()
	logCloser = nil
	return err
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
