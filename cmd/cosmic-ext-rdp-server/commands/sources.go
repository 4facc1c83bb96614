package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/config"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/logger"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/portal"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Negotiate a capture session and list the available sources",
	Long: `Run the portal handshake and print the monitor sources the compositor
offers, then release the session. Useful for checking permissions and
inspecting stream geometry without starting the pipeline.`,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg)
	logger.Init(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session, err := negotiate(ctx, cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	for _, src := range session.Sources {
		if src.Width > 0 && src.Height > 0 {
			fmt.Printf("node %d: %dx%d (logical)\n", src.NodeID, src.Width, src.Height)
		} else {
			fmt.Printf("node %d: size not reported\n", src.NodeID)
		}
	}
	if session.RestoreToken != "" {
		fmt.Println("restore token saved; future runs skip the consent dialog")
	}
	return nil
}
