/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package cli

import (
	"path/filepath"

	"github.com/kardianos/osext"
	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/MotorolaMobilityLLC/bootrom-tools/artifact/ffff"
	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

var flashFlasher string
var flashExtraArgs string

// defaultFlasher looks for the flash download tool next to this executable.
func defaultFlasher() (string, error) {
	dir, err := osext.ExecutableFolder()
	if err != nil {
		return "", util.ChildBrtError(err)
	}

	path := filepath.Join(dir, "brt-flasher")
	if util.NodeNotExist(path) {
		return "", util.FmtBrtError(
			"No flasher at \"%s\"; specify one with --flasher", path)
	}

	return path, nil
}

func flashRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		BrtUsage(cmd, util.NewBrtError("Must specify an FFFF file"))
	}

	// The image has to hold water before it goes anywhere near a device.
	r, err := ffff.ReadRomImage(args[0])
	if err != nil {
		BrtUsage(nil, err)
	}
	for i, h := range r.Headers {
		if !h.IsGood() {
			BrtUsage(nil, util.FmtBrtError(
				"FFFF header %d is %s; refusing to flash",
				i, ffff.ValidityName(h.Validity())))
		}
	}

	flasher := flashFlasher
	if flasher == "" {
		if flasher, err = defaultFlasher(); err != nil {
			BrtUsage(nil, err)
		}
	}

	cmdLine := []string{flasher}
	if flashExtraArgs != "" {
		extra, err := shellquote.Split(flashExtraArgs)
		if err != nil {
			BrtUsage(cmd, util.FmtBrtError(
				"Invalid --flasher-args: %s", err.Error()))
		}
		cmdLine = append(cmdLine, extra...)
	}
	cmdLine = append(cmdLine, args[0])

	out, err := util.ShellCommand(cmdLine, nil)
	util.StatusMessage(util.VERBOSITY_DEFAULT, "%s", string(out))
	if err != nil {
		BrtUsage(nil, err)
	}
}

func AddFlashCommands(cmd *cobra.Command) {
	flashHelpText := FormatHelp(`Validate a built FFFF flash image and hand
		it to an external flash download tool.  The tool receives the image
		filename as its last argument.`)
	flashCmd := &cobra.Command{
		Use:   "flash <ffff-file>",
		Short: "Download a flash image via an external flasher",
		Long:  flashHelpText,
		Run:   flashRunCmd,
	}
	flashCmd.Flags().StringVar(&flashFlasher, "flasher", "",
		"Path to the flash download tool "+
			"(default: brt-flasher next to this executable)")
	flashCmd.Flags().StringVar(&flashExtraArgs, "flasher-args", "",
		"Extra arguments passed to the flash download tool")
	cmd.AddCommand(flashCmd)
}
