package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/erikgeiser/promptkit/confirmation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/beamship/beam/cmd/beam/tui"
	sender_ui "github.com/beamship/beam/cmd/beam/tui/sender"
	"github.com/beamship/beam/internal/engine"
	"github.com/beamship/beam/internal/fsys"
	"github.com/beamship/beam/internal/session"
)

// -------------------------------------------------------- Send -------------------------------------------------------

func Send() *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send path",
		Short: "Share a file or directory",
		Long:  "The send command shares a single file or directory through the transfer engine and hands out a ticket for the receiver.",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("engine", cmd.Flags().Lookup("engine")); err != nil {
				return fmt.Errorf("binding engine flag: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			engineAddr := viper.GetString("engine")
			if err := validateAddress(engineAddr); err != nil {
				return fmt.Errorf("%w: (%s) is not a valid engine address", err, engineAddr)
			}

			path := args[0]
			fs := fsys.New()
			kind, err := fs.Classify(path)
			if err != nil {
				return fmt.Errorf("inspecting %q: %w", path, err)
			}
			if kind == session.KindDirectory {
				ok, err := confirmDirectory(path)
				if err != nil {
					return fmt.Errorf("confirming directory share: %w", err)
				}
				if !ok {
					return nil
				}
			}

			log, err := setupLoggingFromViper("send")
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			if err := handleSendCommand(cmd.Context(), engineAddr, path, fs, log); err != nil {
				return fmt.Errorf("running send command: %w", err)
			}
			return nil
		},
	}
	sendCmd.Flags().StringP("engine", "e", "", engineFlagDesc)
	return sendCmd
}

// ------------------------------------------------------ Handlers -----------------------------------------------------

// handleSendCommand is the sender application.
func handleSendCommand(ctx context.Context, engineAddr, path string, fs *fsys.FS, log *zap.Logger) error {
	client, err := engine.Dial(ctx, engineAddr, log)
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	alerter := tui.NewAlerter()
	sess := session.New(client, fs, alerter, log)
	program := tea.NewProgram(sender_ui.New(sess, path))
	alerter.Bind(program)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := sess.Run(runCtx, client.Signals()); err != nil {
			log.Error("session loop exited", zap.Error(err))
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running tui: %w", err)
	}
	fmt.Println("")
	return nil
}

func confirmDirectory(path string) (bool, error) {
	prompt := confirmation.New(
		fmt.Sprintf("%q is a directory, share all of its contents?", path),
		confirmation.Yes,
	)
	return prompt.RunPrompt()
}
