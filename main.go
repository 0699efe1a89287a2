// ABOUTME: Entry point for the mixgraph mixing engine
// ABOUTME: Parses CLI flags over the JSON config and runs the engine, control server and TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sendspin/mixgraph/internal/config"
	"github.com/Sendspin/mixgraph/internal/discovery"
	"github.com/Sendspin/mixgraph/internal/logging"
	"github.com/Sendspin/mixgraph/internal/ui"
	"github.com/Sendspin/mixgraph/internal/version"
	"github.com/Sendspin/mixgraph/pkg/audio/effect"
	"github.com/Sendspin/mixgraph/pkg/audio/output"
	"github.com/Sendspin/mixgraph/pkg/control"
	"github.com/Sendspin/mixgraph/pkg/mixgraph"
	"github.com/Sendspin/mixgraph/pkg/resources"
)

var (
	configPath  = flag.String("config", config.DefaultPath, "Path to JSON config")
	driverName  = flag.String("driver", "", "Output driver: oto, portaudio, malgo, null or wav:<path>")
	deviceName  = flag.String("device", "", "Preferred output device")
	port        = flag.Int("port", 0, "Control server port")
	logFile     = flag.String("log-file", "", "Log file path (default mixgraph.log with the TUI)")
	noTUI       = flag.Bool("no-tui", false, "Disable TUI, stream logs instead")
	noControl   = flag.Bool("no-control", false, "Disable the websocket control server")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	listDevices = flag.Bool("list-devices", false, "List output devices and exit")
	discover    = flag.Duration("discover", 0, "Browse for control servers on the network for this long and exit")
	play        = flag.String("play", "", "Comma-separated resources to load into the music mixer and play")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	useTUI := !*noTUI
	if err := initLogging(cfg, useTUI); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if *discover > 0 {
		browse(*discover)
		return
	}

	driver, err := output.ByName(cfg.Audio.Driver)
	if err != nil {
		logging.Fatalf("Failed to select driver: %v", err)
	}

	if *listDevices {
		devices, err := driver.Devices()
		if err != nil {
			logging.Fatalf("Failed to list devices: %v", err)
		}
		for _, d := range devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, d.Name)
		}
		return
	}

	logging.Infof("Starting %s", version.String())

	engine := mixgraph.NewEngine(mixgraph.Config{
		Driver:             driver,
		SampleRate:         cfg.Audio.SampleRate,
		BufferFrames:       cfg.Audio.BufferFrames,
		Device:             cfg.Audio.Device,
		TickInterval:       cfg.Audio.TickInterval(),
		DevicePollInterval: cfg.Audio.DevicePollInterval(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx)

	mixers, err := buildMixers(engine, cfg.Mixers)
	if err != nil {
		logging.Fatalf("Failed to build mixers: %v", err)
	}

	provider, cleanup, err := buildProvider(cfg.Resources)
	if err != nil {
		logging.Fatalf("Failed to set up resources: %v", err)
	}
	defer cleanup()

	named := make(map[string]*mixgraph.Mixer, len(mixers))
	for _, mx := range mixers {
		named[mx.Name()] = mx
	}
	trackMixer := named["music"]
	tracks := engine.NewTrackStore(provider, trackMixer)

	if *play != "" {
		go playAtStartup(ctx, tracks, strings.Split(*play, ","))
	}

	var srv *control.Server
	if cfg.Control.Enabled {
		srv = control.New(control.Config{
			Port:          cfg.Control.Port,
			Name:          cfg.Control.Name,
			EnableMDNS:    cfg.Control.MDNS,
			MeterInterval: cfg.Control.MeterInterval(),
		}, engine, tracks, named)
		go func() {
			if err := srv.Start(); err != nil {
				logging.Errorf("Control server error: %v", err)
			}
		}()
	}

	var controls *ui.Controls
	if useTUI {
		controls = ui.NewControls()
		overlay := append([]*mixgraph.Mixer{engine.Master()}, mixers...)
		prog, err := ui.Run(engine, overlay, controls)
		if err != nil {
			logging.Fatalf("Failed to start TUI: %v", err)
		}
		go func() {
			if _, err := prog.Run(); err != nil {
				logging.Errorf("TUI error: %v", err)
			}
		}()
		go func() {
			if err := ui.Watch(ctx, prog, engine, overlay, 50*time.Millisecond); err != nil {
				logging.Warnf("TUI watcher stopped: %v", err)
			}
		}()
		go handleVolumeControl(ctx, engine, named, controls)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if controls != nil {
		select {
		case <-controls.Quit:
			logging.Infof("Received quit signal from TUI")
		case <-sigChan:
			logging.Infof("Shutdown signal received")
		}
	} else {
		<-sigChan
		logging.Infof("Shutdown signal received")
	}

	if srv != nil {
		srv.Stop()
	}
	cancel()
	if err := engine.Close(); err != nil {
		logging.Errorf("Error closing engine: %v", err)
	}
	logging.Infof("Engine stopped")
}

// browse prints every control server answering within d
func browse(d time.Duration) {
	disc := discovery.NewManager(discovery.Config{BrowseTimeout: d})
	defer disc.Stop()
	disc.Browse()

	seen := make(map[string]bool)
	deadline := time.After(d)
	for {
		select {
		case server := <-disc.Servers():
			if url := server.URL(); !seen[url] {
				seen[url] = true
				fmt.Printf("%s\t%s\n", server.Name, url)
			}
		case <-deadline:
			if len(seen) == 0 {
				fmt.Println("No control servers found")
			}
			return
		}
	}
}

func applyFlags(cfg *config.AppConfig) {
	if *driverName != "" {
		cfg.Audio.Driver = *driverName
	}
	if *deviceName != "" {
		cfg.Audio.Device = *deviceName
	}
	if *port != 0 {
		cfg.Control.Enabled = true
		cfg.Control.Port = *port
	}
	if *noControl {
		cfg.Control.Enabled = false
	}
	if *noMDNS {
		cfg.Control.MDNS = false
	}
	if *logFile != "" {
		cfg.Logging.File = *logFile
	}
}

// initLogging keeps the terminal free for the TUI by logging to a file
func initLogging(cfg *config.AppConfig, useTUI bool) error {
	lc := logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	path := cfg.Logging.File
	if path == "" && useTUI {
		path = "mixgraph.log"
	}
	if path == "" {
		return logging.Init(lc)
	}
	return logging.InitFile(lc, path)
}

func buildMixers(engine *mixgraph.Engine, configs []config.MixerConfig) ([]*mixgraph.Mixer, error) {
	mixers := make([]*mixgraph.Mixer, 0, len(configs))
	for _, mc := range configs {
		mx := engine.NewMixer(mc.Name)
		if mc.Volume != nil {
			mx.SetVolume(*mc.Volume)
		}
		mx.SetBalance(mc.Balance)
		for _, ec := range mc.Effects {
			e, err := buildEffect(ec)
			if err != nil {
				return nil, fmt.Errorf("mixer %s: %w", mc.Name, err)
			}
			mx.AddEffect(e, ec.Priority)
		}
		mixers = append(mixers, mx)
	}
	return mixers, nil
}

func buildEffect(ec config.EffectConfig) (effect.Effect, error) {
	param := func(key string, def float64) float64 {
		if v, ok := ec.Params[key]; ok {
			return v
		}
		return def
	}
	switch strings.ToLower(ec.Type) {
	case "gain":
		return effect.NewGain(param("gain", 1)), nil
	case "lowpass":
		return effect.NewLowPass(param("cutoff", 8000)), nil
	case "echo":
		return effect.NewEcho(param("delay", 0.25), param("feedback", 0.3), param("mix", 0.3)), nil
	default:
		return nil, fmt.Errorf("unknown effect type %q", ec.Type)
	}
}

// buildProvider chains the local directory before the optional HTTP source
func buildProvider(rc config.ResourcesConfig) (resources.Provider, func(), error) {
	var chain resources.Chain
	if rc.Dir != "" {
		chain = append(chain, resources.NewDir(rc.Dir, rc.Extensions...))
	}
	cleanup := func() {}
	if rc.HTTPBase != "" {
		h, err := resources.NewHTTP(resources.HTTPConfig{
			BaseURL:  rc.HTTPBase,
			Index:    rc.HTTPIndex,
			CacheDir: rc.CacheDir,
		})
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, h)
		cleanup = func() {
			if err := h.Cleanup(); err != nil {
				logging.Warnf("Failed to clean resource cache: %v", err)
			}
		}
	}
	return chain, cleanup, nil
}

func playAtStartup(ctx context.Context, tracks *mixgraph.TrackStore, names []string) {
	loaded, err := tracks.Preload(ctx, names...)
	if err != nil {
		logging.Errorf("Preload failed: %v", err)
		return
	}
	for i, t := range loaded {
		if t == nil {
			logging.Warnf("Resource %q not found", names[i])
			continue
		}
		if err := t.Play(false); err != nil {
			logging.Warnf("Failed to play %q: %v", names[i], err)
		}
	}
}

// handleVolumeControl applies volume changes from the TUI
func handleVolumeControl(ctx context.Context, engine *mixgraph.Engine, named map[string]*mixgraph.Mixer, controls *ui.Controls) {
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-controls.Changes:
			mx := named[change.Mixer]
			if change.Mixer == "master" {
				mx = engine.Master()
			}
			if mx == nil {
				continue
			}
			if err := mx.SetVolume(change.Volume); err != nil {
				logging.Warnf("Failed to set %s volume: %v", change.Mixer, err)
			}
		}
	}
}
