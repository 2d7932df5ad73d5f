// Copyright © 2023 The dzdl Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/butyi/dzdl/dz60"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var terminalSeeValues = false

// runTerminal hands the keyboard to the link until ESC is pressed
func runTerminal(ctx context.Context, t dz60.Transport, comm *dz60.CommLog, seeValues bool) error {
	log.Info("Terminal started, press ESC to quit")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return errors.Wrap(err, "cannot switch keyboard to raw mode")
		}
		defer term.Restore(fd, state)
	}
	return dz60.Passthrough(ctx, t, os.Stdin, os.Stdout, dz60.TerminalOptions{SeeValues: seeValues, Comm: comm})
}

var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Open a terminal on the serial port",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, comm, err := openLink()
		if err != nil {
			return err
		}
		defer comm.Close()
		defer t.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runTerminal(ctx, t, comm, terminalSeeValues)
	},
}

func init() {
	rootCmd.AddCommand(terminalCmd)
	terminalCmd.Flags().BoolVarP(&terminalSeeValues, "seeval", "s", false, "print received bytes as hex")
}
