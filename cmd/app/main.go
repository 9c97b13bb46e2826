package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"genico/internal/config"
	"genico/internal/server"
	"genico/pkg/logger"
)

type options struct {
	configPath string
	logLevel   string
	port       int
}

var errUsage = errors.New("usage")

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	log, err := logger.NewSugared(opts.logLevel)
	if err != nil {
		os.Stderr.WriteString("CRITICAL: Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}

	srv, err := server.New(cfg, log.Desugar())
	if err != nil {
		log.Fatal("Failed to create server: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Serving at http://localhost:%d", cfg.Server.Port)
		if err := srv.Run(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed: ", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// parseArgs reads the flags and the optional PORT argument. Usage goes to
// stderr whenever the arguments cannot be used.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}

	flagSet := pflag.NewFlagSet("genico", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a config file (yaml, toml or json)")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: genico [flags] [PORT]\n\nFlags:\n%s", flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(stderr, err)
			flagSet.Usage()
		}
		return nil, err
	}

	rest := flagSet.Args()
	switch len(rest) {
	case 0:
	case 1:
		port, err := strconv.Atoi(rest[0])
		if err != nil || port <= 0 || port > 65535 {
			flagSet.Usage()
			return nil, fmt.Errorf("%w: invalid port %q", errUsage, rest[0])
		}
		opts.port = port
	default:
		flagSet.Usage()
		return nil, fmt.Errorf("%w: unexpected argument %q", errUsage, rest[1])
	}

	return opts, nil
}
