// Package main provides HearingAI, a real-time stereo sound cue engine that
// flashes a visual indicator when the left or right channel gets loud and
// classifies short sound events such as footsteps and gunshots.
//
// Usage:
//
//	hearingai run [--config PATH] [--no-overlay]
//	hearingai devices
//	hearingai analyze FILE.wav [--realtime]
//	hearingai version
//
// If --config is not specified, settings are kept in HearingAI/settings.json
// under the user configuration directory.
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
	"sync/atomic"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.design/x/hotkey/mainthread"
	"golang.org/x/sync/errgroup"

	"github.com/oszuidwest/hearingai/internal/audio"
	"github.com/oszuidwest/hearingai/internal/capture"
	"github.com/oszuidwest/hearingai/internal/config"
	"github.com/oszuidwest/hearingai/internal/engine"
	"github.com/oszuidwest/hearingai/internal/eventlog"
	"github.com/oszuidwest/hearingai/internal/hotkey"
	"github.com/oszuidwest/hearingai/internal/metrics"
	"github.com/oszuidwest/hearingai/internal/notify"
	"github.com/oszuidwest/hearingai/internal/ui"
	"github.com/oszuidwest/hearingai/internal/util"
)

// overlayEventBuffer is the number of queued events the overlay may lag behind.
const overlayEventBuffer = 256

// CLI defines the command-line interface
type CLI struct {
	Config    string `short:"c" type:"path" help:"Path to settings file (.json or .yaml)"`
	LogLevel  string `default:"info" enum:"debug,info,warn,error" help:"Log level (${enum})"`
	LogFormat string `default:"text" enum:"text,json" help:"Log format (${enum})"`

	Run     RunCmd     `cmd:"" default:"1" help:"Monitor the capture device (default)"`
	Devices DevicesCmd `cmd:"" help:"List capture devices"`
	Analyze AnalyzeCmd `cmd:"" help:"Replay a WAV file through the detection pipeline"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// configPath returns the settings file to use.
func (c *CLI) configPath() (string, error) {
	if c.Config != "" {
		return c.Config, nil
	}
	return config.DefaultPath()
}

// setupLogging installs the default slog handler writing to w.
func (c *CLI) setupLogging(w io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return util.WrapError("parse log level", err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func main() {
	mainthread.Init(run)
}

func run() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("hearingai"),
		kong.Description("Real-time stereo sound cue engine"),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

// RunCmd monitors the configured capture device.
type RunCmd struct {
	NoOverlay bool   `help:"Disable the terminal overlay"`
	LogFile   string `type:"path" help:"Log file used while the overlay is shown (default: hearingai.log next to the settings file)"`
}

// Run starts the engine, control surface, overlay and hotkey and blocks until
// a shutdown signal or until the overlay is closed.
func (r *RunCmd) Run(cli *CLI) error {
	path, err := cli.configPath()
	if err != nil {
		return err
	}

	overlay := !r.NoOverlay && isatty.IsTerminal(os.Stdout.Fd())
	logOut := io.Writer(os.Stderr)
	if overlay {
		logPath := r.LogFile
		if logPath == "" {
			logPath = filepath.Join(filepath.Dir(path), "hearingai.log")
		}
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil { //nolint:gosec // Config directory permissions
			return util.WrapError("create log directory", err)
		}
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // User-chosen log path
		if err != nil {
			return util.WrapError("open log file", err)
		}
		defer f.Close() //nolint:errcheck // Log file, nothing to recover
		logOut = f
	}
	if err := cli.setupLogging(logOut); err != nil {
		return err
	}

	slog.Info("using config file", "path", path)
	cfg := config.New(path)
	if err := cfg.Load(); err != nil {
		return util.WrapError("load config", err)
	}
	snap := cfg.Snapshot()

	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer stop()

	analyzer, err := engine.New(capture.NewMalgo(), snap.Analyzer())
	if err != nil {
		return util.WrapError("create analyzer", err)
	}

	events := eventlog.NewLogger(eventlog.DefaultCapacity, eventlog.DefaultMaxAge)
	analyzer.Subscribe(events)

	notifier := notify.NewDetectionNotifier(cfg)
	defer notifier.Close()
	analyzer.Subscribe(notifier)

	version := NewVersionChecker()
	srv := NewServer(cfg, analyzer, events, notifier, version, metrics.NewExporter())

	g, gctx := errgroup.WithContext(ctx)

	var program *tea.Program
	if overlay {
		obs := engine.NewChannelObserver("overlay", overlayEventBuffer, true)
		analyzer.Subscribe(obs)
		model := ui.NewModel(obs.Events(), overlaySettings(&snap), analyzer.Toggle)
		program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
	}

	unsubscribe := cfg.Subscribe(func(s config.Snapshot) {
		if err := analyzer.UpdateSettings(s.Analyzer()); err != nil {
			slog.Error("failed to apply settings", "error", err)
		}
		if program != nil {
			program.Send(ui.SettingsMsg{Settings: overlaySettings(&s)})
		}
	})
	defer unsubscribe()

	if err := analyzer.Start(); err != nil {
		// Monitoring can be started later from the overlay, hotkey or controller.
		slog.Error("failed to start analysis", "error", err)
	}

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if program != nil {
		g.Go(func() error {
			_, err := program.Run()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return util.WrapError("run overlay", err)
			}
			// Closing the overlay ends the process.
			stop()
			return nil
		})
	}

	if snap.Hotkey != "" {
		g.Go(func() error {
			hk := hotkey.NewManager(func() {
				if err := analyzer.Toggle(); err != nil {
					slog.Error("failed to toggle monitoring", "error", err)
				}
			})
			if err := hk.Start(gctx, snap.Hotkey); err != nil {
				slog.Warn("global hotkey unavailable", "error", err)
				return nil
			}
			<-gctx.Done()
			hk.Stop()
			return nil
		})
	}

	err = g.Wait()
	slog.Info("shutting down")

	if stopErr := analyzer.Stop(); stopErr != nil {
		slog.Error("error stopping analyzer", "error", stopErr)
	}
	version.Stop()

	slog.Info("shutdown complete")
	return err
}

// overlaySettings converts settings to the overlay's flash settings.
func overlaySettings(s *config.Snapshot) ui.Settings {
	return ui.Settings{
		FlashDuration: s.FlashDuration(),
		LeftColor:     s.LeftColor,
		RightColor:    s.RightColor,
		Opacity:       s.Opacity,
	}
}

// DevicesCmd lists capture devices.
type DevicesCmd struct{}

// Run prints the enumerated devices, marking the default entry.
func (d *DevicesCmd) Run(cli *CLI) error {
	if err := cli.setupLogging(os.Stderr); err != nil {
		return err
	}

	devices, err := capture.ListDevices()
	if err != nil {
		slog.Warn("device enumeration incomplete", "error", err)
	}
	for _, dev := range devices {
		marker := " "
		if dev.IsDefault {
			marker = "*"
		}
		if dev.ID == "" {
			fmt.Printf("%s %s\n", marker, dev.Name)
			continue
		}
		fmt.Printf("%s %s  %s\n", marker, dev.Name, keyStyle.Render(dev.ID))
	}
	return nil
}

// AnalyzeCmd replays a WAV file through the same pipeline used for live
// capture.
type AnalyzeCmd struct {
	File     string `arg:"" type:"existingfile" help:"WAV file to analyze"`
	Realtime bool   `help:"Replay at the file's sample rate instead of as fast as possible"`
}

// Run analyzes the file and prints channel activity and detections.
func (a *AnalyzeCmd) Run(cli *CLI) error {
	if err := cli.setupLogging(os.Stderr); err != nil {
		return err
	}

	// Use saved settings when present, without creating a settings file.
	cfg := config.New("")
	if path, err := cli.configPath(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			cfg = config.New(path)
			if err := cfg.Load(); err != nil {
				return util.WrapError("load config", err)
			}
		}
	}
	snap := cfg.Snapshot()

	src, err := capture.NewFile(a.File, a.Realtime)
	if err != nil {
		return err
	}
	if src.Format().Channels != 2 {
		return fmt.Errorf("%s: need a stereo file, got %d channel(s)", a.File, src.Format().Channels)
	}

	settings := snap.Analyzer()
	settings.SampleRate = src.Format().SampleRate
	settings.DeviceID = ""

	analyzer, err := engine.New(src, settings)
	if err != nil {
		return util.WrapError("create analyzer", err)
	}

	var left, right, detections atomic.Int64
	start := time.Now()
	analyzer.Subscribe(engine.ObserverFuncs{
		OnLeft: func(at time.Time) {
			left.Add(1)
			printActivity(at.Sub(start), audio.ChannelLeft)
		},
		OnRight: func(at time.Time) {
			right.Add(1)
			printActivity(at.Sub(start), audio.ChannelRight)
		},
		OnDetection: func(d audio.Detection) {
			detections.Add(1)
			fmt.Printf("%s  %-5s  %s %s\n", keyStyle.Render(fmtOffset(d.Timestamp.Sub(start))),
				d.Channel, valueStyle.Render(d.Name), keyStyle.Render(fmt.Sprintf("%.0f%% @ %.0f Hz", d.Confidence*100, d.Frequency)))
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), util.ShutdownSignals()...)
	defer stop()

	if err := analyzer.Start(); err != nil {
		return err
	}
	select {
	case <-src.Done():
	case <-ctx.Done():
	}
	_ = analyzer.Stop() //nolint:errcheck // Stop logs and swallows its errors

	status := analyzer.Status()
	fmt.Println()
	fmt.Printf("%s %d\n", keyStyle.Render("Windows:"), status.Windows)
	fmt.Printf("%s %s\n", keyStyle.Render("Elapsed:"), util.FormatDuration(time.Since(start).Milliseconds()))
	fmt.Printf("%s %d left, %d right\n", keyStyle.Render("Channel activity:"), left.Load(), right.Load())
	fmt.Printf("%s %d\n", keyStyle.Render("Detections:"), detections.Load())
	if status.LastError != "" {
		return errors.New(status.LastError)
	}
	return nil
}

func printActivity(offset time.Duration, ch audio.Channel) {
	fmt.Printf("%s  %-5s  active\n", keyStyle.Render(fmtOffset(offset)), ch)
}

// fmtOffset formats a replay offset as m:ss.mmm.
func fmtOffset(d time.Duration) string {
	d = max(d, 0)
	return fmt.Sprintf("%d:%06.3f", int(d.Minutes()), (d % time.Minute).Seconds())
}

// VersionCmd prints build information.
type VersionCmd struct{}

// Run prints the version, commit and build time.
func (v *VersionCmd) Run() error {
	fmt.Println(titleStyle.Render("HearingAI"))
	fmt.Printf("%s %s\n", keyStyle.Render("Version:"), valueStyle.Render(Version))
	fmt.Printf("%s %s\n", keyStyle.Render("Commit:"), valueStyle.Render(Commit))
	fmt.Printf("%s %s\n", keyStyle.Render("Built:"), valueStyle.Render(buildTime(BuildTime)))
	return nil
}

// Styles for command output
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	valueStyle = lipgloss.NewStyle().
			Bold(true)
)
