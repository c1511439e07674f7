// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"fmt"

	"github.com/ostafen/trsdisk/pkg/util/format"
	"github.com/spf13/cobra"
)

func DefineInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "info <image_path>",
		Short:        "Print the detected layout and geometry of a TRS-80 disk image",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunInfo,
	}
}

func RunInfo(cmd *cobra.Command, args []string) error {
	tfs, err := openFileSystem(cmd, args[0])
	if err != nil {
		return err
	}
	l := tfs.Layout()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "System type:     %s\n", l.SystemType)
	fmt.Fprintf(out, "Detected OS:     %s\n", l.DetectedOS)
	fmt.Fprintf(out, "Directory track: %d\n", l.DirTrack)
	fmt.Fprintf(out, "Sector base:     %d\n", l.SectorBase)
	fmt.Fprintf(out, "Granule layout:  %d sectors/granule, %d granules/track\n",
		l.Geometry.SectorsPerGranule, l.Geometry.GranulesPerTrack)
	fmt.Fprintf(out, "Files:           %d\n", len(tfs.ListFiles()))
	fmt.Fprintf(out, "Free space:      %s\n", format.FormatBytes(tfs.GetFreeSpace()))
	return nil
}
