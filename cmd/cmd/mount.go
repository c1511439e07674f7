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
	"path/filepath"
	"strings"

	"github.com/ostafen/trsdisk/internal/fuse"
	"github.com/spf13/cobra"
)

func DefineMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mount <image_path> [mountpoint]",
		Short: "Mount a TRS-80 disk image (JV1/DMK) as a FUSE filesystem",
		Long: `The 'mount' command analyzes a TRS-80 disk image, identifies its TRSDOS/
NEWDOS directory layout, and exposes its files through a FUSE mountpoint.
Writes are buffered in memory and committed to the image on file close.`,
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE:         RunMount,
	}
	return cmd
}

func RunMount(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	mountpoint := ""
	if len(args) > 1 {
		mountpoint = args[1]
	} else {
		mountpoint = getMountpoint(imagePath)
	}

	tfs, err := openFileSystem(cmd, imagePath)
	if err != nil {
		return err
	}

	log := logLevelFromFlag(cmd)
	log.Infof("mounted %s (%s, %s)", imagePath, tfs.Layout().SystemType, tfs.Layout().DetectedOS)
	return fuse.Mount(mountpoint, tfs, log)
}

// getMountpoint generates a mountpoint name from an image path by
// stripping the extension and appending "_mnt".
func getMountpoint(imagePath string) string {
	baseName := filepath.Base(imagePath)
	ext := filepath.Ext(baseName)
	return strings.TrimSuffix(baseName, ext) + "_mnt"
}
