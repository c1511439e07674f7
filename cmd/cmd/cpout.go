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
	"bytes"

	ioutil "github.com/ostafen/trsdisk/pkg/util/io"
	"github.com/spf13/cobra"
)

func DefineCpOutCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "cp-out <image_path> <filename> <dest_path>",
		Short:        "Copy a file out of a TRS-80 disk image to the host filesystem",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE:         RunCpOut,
	}
}

func RunCpOut(cmd *cobra.Command, args []string) error {
	tfs, err := openFileSystem(cmd, args[0])
	if err != nil {
		return err
	}

	data, err := tfs.ReadFile(args[1])
	if err != nil {
		return err
	}

	return ioutil.CopyFile(args[2], bytes.NewReader(data))
}
