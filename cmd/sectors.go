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
	sectorsSRecPath     = ""
	sectorsGapThreshold = dz60.DefaultGapThreshold
	sectorsVerifySRec   = false
)

var sectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "Print the sectors and areas an S19 file would program",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		img, err := loadImage(sectorsSRecPath, sectorsVerifySRec)
		if err != nil {
			return err
		}
		sectors := dz60.Segment(img, dz60.DZ60Sectors(), sectorsGapThreshold)
		for _, s := range sectors {
			fmt.Println(s.String())
			for _, a := range s.Areas {
				info := dz60.AddressInfo(a.Start)
				if len(info) > 0 {
					fmt.Printf("    %s  %s\n", a.String(), info)
				} else {
					fmt.Printf("    %s\n", a.String())
				}
			}
		}
		fmt.Printf("%d sectors, %d program frames\n", len(sectors), dz60.RowCount(sectors))
		fmt.Println(img.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sectorsCmd)
	sectorsCmd.Flags().StringVarP(&sectorsSRecPath, "file", "f", "", "path to the S19 file")
	sectorsCmd.Flags().IntVar(&sectorsGapThreshold, "gap-threshold", sectorsGapThreshold, "longest run of undefined bytes sent as filler")
	sectorsCmd.Flags().BoolVar(&sectorsVerifySRec, "verify-srec", false, "reject S19 records with a wrong checksum")
	sectorsCmd.MarkFlagRequired("file")
}
