package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"github.com/wsl-tools/wslportd/pkg/api/client"
	"github.com/wsl-tools/wslportd/pkg/api/router"
	"github.com/wsl-tools/wslportd/pkg/config"
	"github.com/wsl-tools/wslportd/pkg/detector"
	"github.com/wsl-tools/wslportd/pkg/forwarder"
	"github.com/wsl-tools/wslportd/pkg/portproxy"
	pkgversion "github.com/wsl-tools/wslportd/pkg/version"
	"github.com/wsl-tools/wslportd/pkg/wsl"
	"golang.org/x/sys/unix"
)

const usage = `WSL to Windows portproxy auto-forwarder

Usage:
  wslportd status            Show current IP, configured ports and netsh mappings
  wslportd add <port>        Add a port to the manual config and sync immediately
  wslportd remove <port>     Remove a port from the manual config and sync immediately
  wslportd sync              Force immediate re-sync of netsh rules
  wslportd daemon            Run the daemon loop and refresh rules on IP/config changes
  wslportd version           Show version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "status":
		err = cmdStatus(os.Args[2:])
	case "add":
		err = cmdAdd(os.Args[2:])
	case "remove":
		err = cmdRemove(os.Args[2:])
	case "sync":
		err = cmdSync(os.Args[2:])
	case "daemon":
		err = cmdDaemon(os.Args[2:])
	case "version", "--version":
		fmt.Printf("wslportd version %s\n", strings.TrimPrefix(pkgversion.Version, "v"))
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		logrus.Fatalf("unknown command %q", os.Args[1])
	}

	if err != nil {
		logrus.Fatalf("%v", err)
	}
}

func commonFlags(name string) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ExitOnError)
	flags.Bool("debug", false, "Enable debug logging")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fmt.Fprintln(os.Stderr, "\nFlags:")
		fmt.Fprint(os.Stderr, flags.FlagUsages())
	}
	return flags
}

func newForwarder() (*forwarder.Forwarder, error) {
	path, err := config.Path()
	if err != nil {
		return nil, err
	}
	return forwarder.New(path, detector.New(), portproxy.New(), wsl.GuestIPv4), nil
}

func parseFlags(flags *flag.FlagSet, args []string, wantArgs int) ([]string, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() != wantArgs {
		flags.Usage()
		return nil, fmt.Errorf("expected %d argument(s), got %d", wantArgs, flags.NArg())
	}
	if debug, _ := flags.GetBool("debug"); debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return flags.Args(), nil
}

// parsePort validates a port argument before any I/O happens.
func parsePort(arg string) (uint16, error) {
	p, err := strconv.ParseUint(arg, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", arg)
	}
	if p == 0 {
		return 0, errors.New("port 0 is invalid")
	}
	return uint16(p), nil
}

func cmdStatus(args []string) error {
	flags := commonFlags("status")
	socketPath := flags.String("socket", defaultSocketPath(), "Daemon control socket")
	if _, err := parseFlags(flags, args, 0); err != nil {
		return err
	}

	fwd, err := newForwarder()
	if err != nil {
		return err
	}

	ctx := context.Background()
	report, err := fwd.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("WSL IP: %s\n", report.Address)
	fmt.Printf("Config file: %s\n", report.ConfigPath)
	fmt.Printf("Manual ports: %v\n", report.ManualPorts)
	fmt.Printf("PM2 ports: %v\n", report.PM2Ports)
	fmt.Printf("Caddy ports: %v\n", report.CaddyPorts)
	fmt.Printf("All forwarded ports: %v\n", report.AllPorts)

	// best effort: report a running daemon's state if its socket answers
	if c, err := client.New(*socketPath); err == nil {
		if state, err := c.State(ctx); err == nil && !state.SyncedAt.IsZero() {
			fmt.Printf("Daemon: last synced %v -> %s at %s\n",
				state.Ports, state.Address, state.SyncedAt.Format(time.RFC3339))
		}
	}

	fmt.Printf("\nCurrent netsh portproxy mappings:\n%s\n", report.Rules)
	return nil
}

func cmdAdd(args []string) error {
	flags := commonFlags("add")
	rest, err := parseFlags(flags, args, 1)
	if err != nil {
		return err
	}
	port, err := parsePort(rest[0])
	if err != nil {
		return err
	}

	fwd, err := newForwarder()
	if err != nil {
		return err
	}

	inserted, err := fwd.Add(context.Background(), port)
	if err != nil {
		return err
	}
	if inserted {
		fmt.Printf("Added port %d and synced rules.\n", port)
	} else {
		fmt.Printf("Port %d already present; synced rules anyway.\n", port)
	}
	return nil
}

func cmdRemove(args []string) error {
	flags := commonFlags("remove")
	rest, err := parseFlags(flags, args, 1)
	if err != nil {
		return err
	}
	port, err := parsePort(rest[0])
	if err != nil {
		return err
	}

	fwd, err := newForwarder()
	if err != nil {
		return err
	}

	removed, err := fwd.Remove(context.Background(), port)
	if err != nil {
		return err
	}
	if removed {
		fmt.Printf("Removed port %d and synced rules.\n", port)
	} else {
		fmt.Printf("Port %d was not in manual config; synced rules anyway.\n", port)
	}
	return nil
}

func cmdSync(args []string) error {
	flags := commonFlags("sync")
	if _, err := parseFlags(flags, args, 0); err != nil {
		return err
	}

	fwd, err := newForwarder()
	if err != nil {
		return err
	}

	if err := fwd.Sync(context.Background()); err != nil {
		return err
	}
	fmt.Println("Sync complete.")
	return nil
}

func defaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = os.TempDir()
	}
	return filepath.Join(runtimeDir, "wslportd.sock")
}

func cmdDaemon(args []string) error {
	flags := commonFlags("daemon")
	socketPath := flags.String("socket", defaultSocketPath(), "Control socket file")
	pidFile := flags.String("pid-file", "", "Pid file")
	logFilePath := flags.String("log-file", "", "Output logs to file")
	interval := flags.Duration("interval", 5*time.Second, "Poll interval")
	if _, err := parseFlags(flags, args, 0); err != nil {
		return err
	}

	if err := os.Remove(*socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cannot cleanup socket file: %w", err)
	}
	logrus.Infof("SocketPath: %s", *socketPath)

	if *pidFile != "" {
		pid := fmt.Sprintf("%d", os.Getpid())
		if err := os.WriteFile(*pidFile, []byte(pid), 0o644); err != nil {
			return fmt.Errorf("cannot write pid file: %w", err)
		}
		logrus.Infof("PidFilePath: %s", *pidFile)
	}

	if *logFilePath != "" {
		logFile, err := os.Create(*logFilePath)
		if err != nil {
			return fmt.Errorf("cannot write log file %s: %w", *logFilePath, err)
		}
		defer logFile.Close()
		logrus.SetOutput(io.MultiWriter(os.Stderr, logFile))
		logrus.Infof("LogFilePath: %s", *logFilePath)
	}

	fwd, err := newForwarder()
	if err != nil {
		return err
	}
	fwd.Interval = *interval

	go func() {
		if err := listenServeControlAPI(*socketPath, &router.Backend{Forwarder: fwd}); err != nil {
			logrus.Fatalf("failed to serve control API: %q", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	if err := fwd.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logrus.Info("daemon stopped")
			return nil
		}
		return err
	}
	return nil
}

func listenServeControlAPI(socketPath string, backend *router.Backend) error {
	r := mux.NewRouter()
	router.AddRoutes(r, backend)
	srv := &http.Server{Handler: r}
	if err := os.RemoveAll(socketPath); err != nil {
		return err
	}
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	logrus.Infof("Starting control API to serve on %s", socketPath)
	return srv.Serve(l)
}
