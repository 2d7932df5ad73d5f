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
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/butyi/dzdl/dz60"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flashSRecPath       = ""
	flashDumpMemory     = false
	flashTerminal       = false
	flashSeeValues      = false
	flashGapThreshold   = dz60.DefaultGapThreshold
	flashVerifySRec     = false
	flashConnectTimeout = time.Duration(0)
	flashLegacyFraming  = false
)

const DEFAULT_MEMORY_DUMP = "./dzdl.mem"

// flashCmd represents the flash command
var flashCmd = &cobra.Command{
	Use:   "flash",
	Short: "Download an S19 file into the ECU",
	Long: `Download resets the ECU with a break condition until its bootloader
answers, writes the download fingerprint, erases and programs every sector the
S19 file touches and finally starts the application.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flashGapThreshold < 0 {
			return errors.Errorf("gap threshold %d is negative", flashGapThreshold)
		}

		// the whole file is checked before the port is touched
		img, err := loadImage(flashSRecPath, flashVerifySRec)
		if err != nil {
			return err
		}
		if flashDumpMemory {
			if err = writeImage(img, DEFAULT_MEMORY_DUMP); err != nil {
				return err
			}
		}

		sectors := dz60.Segment(img, dz60.DZ60Sectors(), flashGapThreshold)
		if len(sectors) == 0 {
			return errors.New("S19 file holds no data for the DZ60 sectors")
		}
		log.WithFields(log.Fields{"sectors": len(sectors), "rows": dz60.RowCount(sectors)}).Info("Memory sectors filled")

		t, comm, err := openLink()
		if err != nil {
			return err
		}

		cfg := dz60.DefaultConfig()
		cfg.ToolID = toolID
		cfg.EcuID = ecuID
		cfg.ConnectTimeout = flashConnectTimeout
		cfg.LegacyFraming = flashLegacyFraming
		cfg.Progress = printProgress
		session := dz60.NewSession(cfg, t, comm)
		defer session.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		start := time.Now()
		if err = session.Download(ctx, sectors); err != nil {
			fmt.Println()
			return errors.Wrap(err, "download failed")
		}
		fmt.Println()
		log.WithField("duration", time.Since(start).Round(time.Millisecond)).Info("Download done")

		if !flashTerminal {
			return nil
		}
		return runTerminal(ctx, session.Transport(), session.CommLog(), flashSeeValues)
	},
}

func printProgress(p dz60.Progress) {
	if p.State != dz60.STATE_PROGRAMMING || p.RowsTotal == 0 {
		return
	}
	fmt.Printf("\r%s %#04x  %3d%%", p.State, p.Address, p.RowsDone*100/p.RowsTotal)
}

func init() {
	rootCmd.AddCommand(flashCmd)
	flashCmd.Flags().StringVarP(&flashSRecPath, "file", "f", "", "path to the S19 file to download")
	flashCmd.Flags().BoolVarP(&flashDumpMemory, "memory", "m", false, "dump the memory image into "+DEFAULT_MEMORY_DUMP)
	flashCmd.Flags().BoolVarP(&flashTerminal, "terminal", "t", false, "open a terminal on the port after the download")
	flashCmd.Flags().BoolVarP(&flashSeeValues, "seeval", "s", false, "terminal prints received bytes as hex")
	flashCmd.Flags().IntVar(&flashGapThreshold, "gap-threshold", flashGapThreshold, "longest run of undefined bytes sent as filler")
	flashCmd.Flags().BoolVar(&flashVerifySRec, "verify-srec", false, "reject S19 records with a wrong checksum")
	flashCmd.Flags().DurationVar(&flashConnectTimeout, "connect-timeout", 0, "give up connecting after this time, 0 waits until Ctrl+C")
	flashCmd.Flags().BoolVar(&flashLegacyFraming, "legacy-framing", false, "send checksums on program frames only")
	flashCmd.MarkFlagRequired("file")
}
