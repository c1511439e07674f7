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
	"sort"

	"github.com/ostafen/trsdisk/pkg/util/format"
	"github.com/spf13/cobra"
)

func DefineLsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ls <image_path>",
		Short:        "List files in a TRS-80 disk image",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunLs,
	}
	cmd.Flags().BoolP("all", "a", false, "include invisible entries")
	return cmd
}

func RunLs(cmd *cobra.Command, args []string) error {
	tfs, err := openFileSystem(cmd, args[0])
	if err != nil {
		return err
	}
	showAll, _ := cmd.Flags().GetBool("all")

	entries := tfs.ListFiles()
	sort.Slice(entries, func(i, j int) bool { return entries[i].FullName() < entries[j].FullName() })

	for _, e := range entries {
		if e.Invisible && !showAll {
			continue
		}
		flags := ""
		if e.System {
			flags += "S"
		}
		if e.Invisible {
			flags += "H"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %8s  %s\n", e.FullName(), format.FormatBytes(e.Size), flags)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s free\n", format.FormatBytes(tfs.GetFreeSpace()))
	return nil
}
