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
	"fmt"
	"os"
	"strings"

	"github.com/butyi/dzdl/dz60"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	portName    = dz60.DefaultPortName()
	baudRate    = dz60.DEFAULT_BAUD
	toolID      = dz60.DEFAULT_TOOL_ID
	ecuID       = dz60.DEFAULT_ECU_ID
	commLogPath = dz60.DEFAULT_COMM_LOG
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "dzdl",
	Short: "Download software into MC9S08DZ60 flash memory through RS232",
	Long: `dzdl talks to the serial bootloader of MC9S08DZ60 based ECUs. It decodes
an S19 file, erases the touched sectors and programs them row by row.

Examples:
  dzdl flash -p /dev/ttyUSB0 -f app.s19      # download and start the application
  dzdl flash -f app.s19 -t -s                # stay in a hex terminal afterwards
  dzdl sectors -f app.s19                    # show what would be programmed`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&portName, "port", "p", portName, "serial port the ECU is connected to")
	pf.IntVarP(&baudRate, "baud", "b", baudRate, "baud rate of the serial port")
	pf.Uint8VarP(&toolID, "toolid", "i", toolID, "node ID of this tool")
	pf.Uint8VarP(&ecuID, "ecuid", "e", ecuID, "node ID of the target ECU")
	pf.StringVar(&commLogPath, "log", commLogPath, "file the link traffic is recorded to")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// openLink opens the configured serial port together with the communication log.
func openLink() (dz60.Transport, *dz60.CommLog, error) {
	t, err := dz60.OpenSerialPort(portName, baudRate)
	if err != nil {
		if ports, e := dz60.ListSerialPorts(); e == nil && len(ports) > 0 {
			log.Infof("Available serial ports: %s", strings.Join(ports, ", "))
		}
		return nil, nil, err
	}
	comm, err := dz60.CreateCommLog(commLogPath)
	if err != nil {
		t.Close()
		return nil, nil, err
	}
	comm.Note(fmt.Sprintf("port %s opened with %d baud", portName, baudRate))
	return t, comm, nil
}

func loadImage(path string, verify bool) (*dz60.MemoryImage, error) {
	log.WithField("file", path).Info("Open S19 file")
	img, err := dz60.ParseSRecordFile(path, dz60.WithChecksumValidation(verify))
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"used": img.UsedCount(), "crc": fmt.Sprintf("%#04x", img.CRC())}).Info("Memory image built")
	return img, nil
}

func writeImage(img *dz60.MemoryImage, path string) error {
	log.WithField("file", path).Info("Create or update memory dump")
	return os.WriteFile(path, img.Data[:], 0644)
}
