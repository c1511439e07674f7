//go:build !linux
// +build !linux

package fuse

import (
	"fmt"

	"github.com/ostafen/trsdisk/internal/logger"
	"github.com/ostafen/trsdisk/internal/trsdos"
)

func Mount(mountpoint string, tfs *trsdos.FileSystem, log *logger.Logger) error {
	return fmt.Errorf("FUSE mount is only supported on Linux")
}
