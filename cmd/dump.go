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

	"github.com/butyi/dzdl/dz60"
	"github.com/spf13/cobra"
)

var (
	dumpSRecPath = ""
	dumpOutPath  = DEFAULT_MEMORY_DUMP
	dumpHex      = false
)

// printImage prints every 32 byte line of img that holds defined data,
// undefined bytes show as "xx"
func printImage(img *dz60.MemoryImage) {
	linebreakCount := 32
	for line := 0; line < dz60.MEMORY_SIZE; line += linebreakCount {
		used := false
		for addr := line; addr < line+linebreakCount; addr++ {
			used = used || img.Used[addr]
		}
		if !used {
			continue
		}

		fmt.Printf("%#04x: ", line)
		for addr := line; addr < line+linebreakCount; addr++ {
			if img.Used[addr] {
				fmt.Printf("%02x", img.Data[addr])
			} else {
				fmt.Print("xx")
			}
		}
		fmt.Println()
	}
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write the 64k memory image of an S19 file to disk",
	Long:  "Undefined bytes are stored as 0xff. See the result with 'xxd dzdl.mem'.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadImage(dumpSRecPath, false)
		if err != nil {
			return err
		}
		if dumpHex {
			printImage(img)
		}
		if err = writeImage(img, dumpOutPath); err != nil {
			return err
		}
		fmt.Printf("dumped data stored to file '%s' (CRC %#04x)\n", dumpOutPath, img.CRC())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringVarP(&dumpSRecPath, "file", "f", "", "path to the S19 file")
	dumpCmd.Flags().StringVarP(&dumpOutPath, "out", "o", dumpOutPath, "memory dump file")
	dumpCmd.Flags().BoolVarP(&dumpHex, "hex", "x", false, "also print the defined lines as hex")
	dumpCmd.MarkFlagRequired("file")
}
