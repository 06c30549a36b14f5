// canwatch is a live CAN bus monitor. It keeps the most recent frame per
// identifier, estimates each identifier's arrival period, drops anything
// that goes quiet and redraws the set on the terminal a few times per
// second. Frames come from a raw SocketCAN interface, an slcan serial
// adapter or a pcap capture replay.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/banshee-data/canwatch/internal/api"
	"github.com/banshee-data/canwatch/internal/canbus"
	"github.com/banshee-data/canwatch/internal/config"
	"github.com/banshee-data/canwatch/internal/framelog"
	"github.com/banshee-data/canwatch/internal/monitoring"
	"github.com/banshee-data/canwatch/internal/observe"
	"github.com/banshee-data/canwatch/internal/render"
	"github.com/banshee-data/canwatch/internal/replay"
	"github.com/banshee-data/canwatch/internal/slcan"
	"github.com/banshee-data/canwatch/internal/socketcan"
	"github.com/banshee-data/canwatch/internal/timeutil"
	"github.com/banshee-data/canwatch/internal/version"
)

var (
	maxPeriod   = pflag.Float64P("maxperiod", "m", config.DefaultMaxPeriodSecs, "maximum period in seconds; slower rates count as one-time sightings")
	deadTime    = pflag.Float64P("remove", "x", config.DefaultDeadTimeSecs, "remove identifiers after this many seconds without a frame")
	verbose     = pflag.BoolP("verbose", "v", false, "verbose output")
	showVersion = pflag.BoolP("version", "V", false, "show version")
	showHelp    = pflag.BoolP("help", "?", false, "show this help")

	configPath = pflag.String("config", "", "JSON tuning file; explicit flags take precedence")
	listenAddr = pflag.String("listen", "", "serve the latest snapshot over HTTP on this address")
	logPath    = pflag.String("log", "", "append observed changes to this sqlite database")
	replayPath = pflag.String("replay", "", "replay a CAN pcap capture instead of opening a socket")
	replayFast = pflag.Bool("replay-fast", false, "replay without capture-time pacing")
	slcanPort  = pflag.String("slcan", "", "read frames from an slcan serial adapter at this path")
	slcanBaud  = pflag.Int("slcan-baud", slcan.DefaultBaudRate, "slcan serial baud rate")
)

func usage() {
	fmt.Fprintf(os.Stderr, `canwatch: CAN bus spy
usage: canwatch [OPTIONS ...] DEVICE [ID[/MASK] ...]

Watches a CAN bus and shows the latest payload per identifier with its
arrival period. Filters are hex identifiers with an optional /MASK or
:MASK suffix; identifiers wider than 3 hex digits are extended-format.

Options:
%s`, pflag.CommandLine.FlagUsages())
}

func main() {
	pflag.Usage = usage
	pflag.Parse()

	if *showHelp {
		usage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Fprintf(os.Stderr, "canwatch %s (%s, built %s)\n",
			version.Version, version.GitSHA, version.BuildTime)
		os.Exit(0)
	}

	if err := run(pflag.Args()); err != nil {
		log.Fatalf("canwatch: %v", err)
	}
}

// buildTuning merges the optional config file with explicit flags; a flag
// the user set always wins over the file.
func buildTuning() (*config.Tuning, error) {
	tuning := config.EmptyTuning()
	if *configPath != "" {
		loaded, err := config.LoadTuning(*configPath)
		if err != nil {
			return nil, err
		}
		tuning = loaded
	}
	if pflag.CommandLine.Changed("maxperiod") {
		tuning.SetMaxPeriodSecs(*maxPeriod)
	}
	if pflag.CommandLine.Changed("remove") {
		tuning.SetDeadTimeSecs(*deadTime)
	}
	if *verbose {
		tuning.SetVerbose(true)
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	return tuning, nil
}

// openSource picks the frame source: pcap replay and slcan are explicit
// opt-ins, the default is a raw SocketCAN socket with kernel filters.
func openSource(device string, filters []canbus.Filter) (canbus.Source, string, error) {
	switch {
	case *replayPath != "":
		r, err := replay.Open(*replayPath, !*replayFast)
		if err != nil {
			return nil, "", err
		}
		return r, r.String(), nil
	case *slcanPort != "":
		p, err := slcan.Open(*slcanPort, *slcanBaud)
		if err != nil {
			return nil, "", err
		}
		return p, p.String(), nil
	default:
		s, err := socketcan.Open(device, filters)
		if err != nil {
			return nil, "", err
		}
		return s, s.String(), nil
	}
}

func run(args []string) error {
	tuning, err := buildTuning()
	if err != nil {
		return err
	}

	device := "any"
	filterArgs := args
	if len(args) > 0 {
		device = args[0]
		filterArgs = args[1:]
	}
	filters, err := canbus.ParseFilters(filterArgs)
	if err != nil {
		return err
	}

	src, label, err := openSource(device, filters)
	if err != nil {
		return err
	}
	defer src.Close()

	var flog *framelog.Log
	if *logPath != "" {
		flog, err = framelog.Open(*logPath)
		if err != nil {
			return err
		}
		defer flog.Close()
		if tuning.GetVerbose() {
			monitoring.Logf("frame log session %s in %s", flog.Session(), *logPath)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A pending blocking read holds the actor; closing the source on
	// shutdown lets the loop observe the end of the stream.
	go func() {
		<-ctx.Done()
		src.Close()
	}()

	var server *api.Server
	if *listenAddr != "" {
		ln, err := net.Listen("tcp", *listenAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", *listenAddr, err)
		}
		server = api.NewServer(label, func(obs observe.Observation) string {
			return render.ModuleName(obs.ID)
		})
		go serveAPI(ctx, ln, server)
	}

	m := &monitor{
		cache: observe.New(observe.Config{
			MaxPeriod: tuning.GetMaxPeriod(),
			DeadTime:  tuning.GetDeadTime(),
		}),
		renderer:      render.New(os.Stdout, label),
		server:        server,
		flog:          flog,
		clock:         timeutil.RealClock{},
		sweepInterval: tuning.GetSweepInterval(),
		verbose:       tuning.GetVerbose(),
	}
	return m.run(ctx, src)
}

func serveAPI(ctx context.Context, ln net.Listener, server *api.Server) {
	mux := http.NewServeMux()
	apiMux := server.ServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", apiMux))
	mux.Handle("/healthz", apiMux)

	srv := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		monitoring.Logf("http server: %v", err)
	}
}
