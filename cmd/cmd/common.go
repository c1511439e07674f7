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
	"strings"

	"github.com/ostafen/trsdisk/internal/disk"
	"github.com/ostafen/trsdisk/internal/fs"
	"github.com/ostafen/trsdisk/internal/image"
	"github.com/ostafen/trsdisk/internal/logger"
	"github.com/ostafen/trsdisk/internal/trsdos"
	"github.com/spf13/cobra"
)

// openImage opens path as a TRS-80 disk image. Paths under /dev/ (or
// Windows volume paths) are opened through disk.Stat, which reuses the
// cross-platform device-probing logic; anything else is a plain disk
// image file.
func openImage(path string) (image.Image, error) {
	normalized := disk.NormalizeVolumePath(path)

	if strings.HasPrefix(normalized, "/dev/") || strings.HasPrefix(normalized, `\\.\`) {
		info, err := disk.Stat(normalized, 0, disk.TESTDISK_O_RDWR)
		if err != nil {
			return nil, err
		}
		return image.Open(normalized, info, info.RealSize)
	}

	f, err := fs.Open(normalized)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	size, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return image.Open(normalized, f, size.Size())
}

// logLevelFromFlag resolves the shared --log-level flag into a *logger.Logger
// writing to stderr, matching the teacher's logger.ParseLevel convention.
func logLevelFromFlag(cmd *cobra.Command) *logger.Logger {
	levelStr, _ := cmd.Flags().GetString("log-level")
	return logger.New(cmd.ErrOrStderr(), logger.ParseLevel(levelStr))
}

// openFileSystem opens path and analyzes it, returning the ready-to-use
// trsdos.FileSystem.
func openFileSystem(cmd *cobra.Command, path string) (*trsdos.FileSystem, error) {
	img, err := openImage(path)
	if err != nil {
		return nil, err
	}
	log := logLevelFromFlag(cmd)
	return trsdos.New(img, log), nil
}
