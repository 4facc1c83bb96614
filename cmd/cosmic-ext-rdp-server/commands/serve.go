package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/capture"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/config"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/encode"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/frame"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/ipc"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/logger"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/portal"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/preview"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture pipeline",
	Long: `Negotiate a screen capture session through the desktop portal, start the
PipeWire capture loop and route frames through the configured encoder.

The first run shows the system permission dialog; subsequent runs reuse the
saved restore token until the user revokes the grant.`,
	Example: `  # Start with defaults
  cosmic-ext-rdp-server serve

  # Start with the H.264 encoder and the debug preview
  cosmic-ext-rdp-server serve --encoder h264 --preview`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("encoder", "", "frame encoder (raw, h264)")
	serveCmd.Flags().Bool("preview", false, "enable the debug preview server")
	viper.BindPFlag("encoder", serveCmd.Flags().Lookup("encoder"))
	viper.BindPFlag("preview.enabled", serveCmd.Flags().Lookup("preview"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.WithComponent("serve")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	status := ipc.NewStatusService(ipc.SessionInfo{
		Username:  currentUsername(),
		PID:       uint32(os.Getpid()),
		State:     ipc.SessionStarting,
		CreatedAt: time.Now().Unix(),
	})
	if err := status.Publish(); err != nil {
		// The daemon still works without the bus export; only the
		// broker and CLI lose visibility.
		log.Warn().Err(err).Msg("status service unavailable")
	}
	defer status.Close()
	status.SetStatus(ipc.StatusStarting)

	session, err := negotiate(ctx, cfg)
	if err != nil {
		status.SetStatus(ipc.StatusError)
		return err
	}
	defer session.Close()

	source := session.Sources[0]
	codec, err := encode.ParseCodec(cfg.Encoder)
	if err != nil {
		status.SetStatus(ipc.StatusError)
		return err
	}
	enc, err := encode.New(codec, uint32(source.Width), uint32(source.Height))
	if err != nil {
		status.SetStatus(ipc.StatusError)
		return err
	}

	stream, events, err := capture.Start(session.PipeWireFD(), source.NodeID, cfg.ChannelCapacity)
	if err != nil {
		status.SetStatus(ipc.StatusError)
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer stream.Stop()

	var pv *preview.Server
	if cfg.Preview.Enabled {
		pv = preview.NewServer(status)
		go func() {
			if err := pv.Start(cfg.Preview.Port); err != nil {
				log.Error().Err(err).Msg("preview server failed")
			}
		}()
	}

	status.SetStatus(ipc.StatusRunning)
	status.SetState(ipc.SessionActive)
	log.Info().
		Uint32("node_id", source.NodeID).
		Str("encoder", codec.String()).
		Int("channel_capacity", cfg.ChannelCapacity).
		Msg("capture pipeline running")

	err = consume(ctx, events, enc, pv, log)

	status.SetState(ipc.SessionStopping)
	stream.Stop()
	if err != nil {
		status.SetStatus(ipc.StatusError)
		return err
	}
	status.SetStatus(ipc.StatusStopped)
	return nil
}

// negotiate runs the portal handshake, reusing and refreshing the stored
// restore token.
func negotiate(ctx context.Context, cfg *config.Config) (*portal.CaptureSession, error) {
	log := logger.WithComponent("serve")

	restoreToken := portal.LoadRestoreToken(cfg.RestoreTokenPath)
	session, err := portal.StartCaptureSession(ctx, restoreToken)
	if err != nil {
		switch {
		case errors.Is(err, portal.ErrUserCancelled):
			return nil, fmt.Errorf("capture permission denied: %w", err)
		case errors.Is(err, portal.ErrNoSources):
			return nil, fmt.Errorf("no monitor sources available: %w", err)
		default:
			return nil, fmt.Errorf("portal negotiation failed: %w", err)
		}
	}

	if session.RestoreToken != "" && session.RestoreToken != restoreToken {
		if err := portal.SaveRestoreToken(cfg.RestoreTokenPath, session.RestoreToken); err != nil {
			log.Warn().Err(err).Msg("failed to save restore token")
		}
	}
	return session, nil
}

// consume drains the frame channel, keeping encoder geometry in sync and
// publishing output. Returns nil on context cancellation and an error when
// the capture stream dies on its own.
func consume(ctx context.Context, events <-chan frame.CaptureEvent, enc encode.Encoder, pv *preview.Server, log *zerolog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		case ev, ok := <-events:
			if !ok {
				return errors.New("capture stream ended unexpectedly")
			}
			f := &ev.Frame
			if f.Width != enc.Width() || f.Height != enc.Height() {
				log.Info().
					Uint32("width", f.Width).
					Uint32("height", f.Height).
					Msg("stream geometry changed")
				enc.Resize(f.Width, f.Height)
			}
			out, err := enc.Encode(f)
			if err != nil {
				log.Warn().Err(err).Uint64("sequence", f.Sequence).Msg("encode failed, dropping frame")
				continue
			}
			if pv != nil {
				pv.Publish(out)
			}
			// The RDP protocol server consumes out here once wired in.
		}
	}
}

func applyFlagOverrides(cfg *config.Config) {
	if v := viper.GetString("log_level"); v != "" {
		cfg.LogLevel = v
	}
	if viper.GetBool("log_pretty") {
		cfg.LogPretty = true
	}
	if v := viper.GetString("encoder"); v != "" {
		cfg.Encoder = v
	}
	if viper.GetBool("preview.enabled") {
		cfg.Preview.Enabled = true
	}
}

func currentUsername() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
