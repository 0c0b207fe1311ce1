package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/odaacabeef/stems/pkg/clock"
	"github.com/odaacabeef/stems/pkg/config"
	"github.com/odaacabeef/stems/pkg/engine"
	"github.com/odaacabeef/stems/pkg/playback"
	"github.com/odaacabeef/stems/pkg/session"
	"github.com/odaacabeef/stems/pkg/track"
)

var (
	configPath      string
	outputDir       string
	inputDeviceIdx  int
	outputDeviceIdx int
	sampleRate      int
	outputRate      int
	inputChannels   int
	outputChannels  int
	framesPerBuffer int
	internalBPM     float64
	recordVerbose   bool
)

// recordCmd is the real entry point: it loads configuration, opens the
// audio engine, starts the session controller, and blocks on os.Signal.
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record from a multi-channel input device under external clock control",
	Args:  cobra.NoArgs,
	RunE:  runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVarP(&configPath, "config", "c", "stems.yaml", "Path to YAML configuration file")
	recordCmd.Flags().StringVarP(&outputDir, "output", "o", "recordings", "Output directory for captured files")
	recordCmd.Flags().IntVar(&inputDeviceIdx, "input-device", 0, "PortAudio input device index")
	recordCmd.Flags().IntVar(&outputDeviceIdx, "output-device", 0, "PortAudio output device index")
	recordCmd.Flags().IntVar(&sampleRate, "sample-rate", 48000, "Sample rate in Hz")
	recordCmd.Flags().IntVar(&outputRate, "output-sample-rate", 0, "Output device sample rate in Hz (0 = same as --sample-rate)")
	recordCmd.Flags().IntVar(&inputChannels, "input-channels", 2, "Number of input channels to capture")
	recordCmd.Flags().IntVar(&outputChannels, "output-channels", 2, "Number of monitor output channels")
	recordCmd.Flags().IntVarP(&framesPerBuffer, "frames", "f", 512, "Audio frames per buffer")
	recordCmd.Flags().Float64Var(&internalBPM, "internal-clock-bpm", 0, "Drive the clock internally at this BPM instead of an external transport (0 disables)")
	recordCmd.Flags().BoolVarP(&recordVerbose, "verbose", "v", false, "Verbose output (debug logging)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	logLevel := slog.LevelInfo
	if recordVerbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	monitorStart, monitorEnd := 1, 2
	if cfg.Devices.Monitorch != nil {
		monitorStart, monitorEnd, err = config.ValidateMonitorChannels(*cfg.Devices.Monitorch)
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
	}

	tracks := make([]*track.Track, inputChannels)
	for i := 0; i < inputChannels; i++ {
		t := track.NewTrack(i, i)
		if tc, ok := cfg.Tracks[i+1]; ok {
			applyTrackConfig(t, tc)
		}
		tracks[i] = t
	}

	var playbackTracks []*track.PlaybackTrack
	for _, pc := range cfg.Playback {
		pt, err := playback.Load(pc.File, sampleRate)
		if err != nil {
			return fmt.Errorf("record: %w", err)
		}
		if pc.Monitor != nil {
			pt.SetMonitoring(*pc.Monitor)
		}
		if pc.Solo != nil {
			pt.SetSolo(*pc.Solo)
		}
		if pc.Level != nil {
			pt.SetLevel(*pc.Level)
		}
		if pc.Pan != nil {
			pt.SetPan(*pc.Pan)
		}
		playbackTracks = append(playbackTracks, pt)
		logger.Info("loaded playback track", "file", pc.File)
	}

	logger.Info("initializing PortAudio")
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("record: initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	eng := engine.New(engine.Config{
		SampleRate:       sampleRate,
		OutputSampleRate: outputRate,
		InputChannels:    inputChannels,
		OutputChannels:   outputChannels,
		Playback:         playbackTracks,
		InputDeviceIdx:   inputDeviceIdx,
		OutputDeviceIdx:  outputDeviceIdx,
		FramesPerBuffer:  framesPerBuffer,
		MonitorStart:     monitorStart,
		MonitorEnd:       monitorEnd,
		Tracks:           tracks,
	}, logger)
	defer eng.Close()

	warning, err := eng.StartStream()
	if err != nil {
		return fmt.Errorf("record: start stream: %w", err)
	}
	if warning != "" {
		logger.Warn(warning)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("record: create output dir %s: %w", outputDir, err)
	}

	ctrl := session.New(eng, outputDir, logger)

	c := clock.New()
	listener := clock.NewListener(c)
	go ctrl.Run(listener.Commands())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	statusDone := make(chan struct{})
	go monitorSessionStatus(ctrl, statusDone)

	stopClockSource := func() {}
	if internalBPM > 0 {
		stopClockSource = startInternalClockSource(listener, internalBPM)
	}

	logger.Info("recording session ready", "output_dir", outputDir, "monitor_channels", fmt.Sprintf("%d-%d", monitorStart, monitorEnd))

	<-sigChan
	logger.Info("signal received, shutting down")

	stopClockSource()
	close(statusDone)

	if err := ctrl.Shutdown(); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	return nil
}

func applyTrackConfig(t *track.Track, tc config.TrackConfig) {
	if tc.Arm != nil {
		t.SetArmed(*tc.Arm)
	}
	if tc.Monitor != nil {
		t.SetMonitoring(*tc.Monitor)
	}
	if tc.Solo != nil {
		t.SetSolo(*tc.Solo)
	}
	if tc.Level != nil {
		t.SetLevel(*tc.Level)
	}
	if tc.Pan != nil {
		t.SetPan(*tc.Pan)
	}
}

// startInternalClockSource drives the clock listener at a fixed BPM. A
// real deployment feeds listener.Feed from whatever decodes the external
// clock's transport messages; this stands in when no such source exists.
func startInternalClockSource(listener *clock.Listener, bpm float64) (stop func()) {
	interval := time.Duration(float64(time.Minute) / (bpm * clock.TicksPerBeat))
	done := make(chan struct{})

	go func() {
		listener.Feed(clock.MessageStart)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				listener.Feed(clock.MessageTick)
			case <-done:
				listener.Feed(clock.MessageStop)
				return
			}
		}
	}()

	return func() { close(done) }
}

func monitorSessionStatus(ctrl *session.Controller, done chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if tempo := ctrl.Tempo(); tempo > 0 {
				slog.Debug("session status", "tempo_bpm", tempo)
			}
		case <-done:
			return
		}
	}
}
