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

package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MotorolaMobilityLLC/bootrom-tools/brt/cli"
	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

var BrtVersionStr = "brt 1.0.0"

var brtLogLevel log.Level
var brtSilent bool
var brtQuiet bool
var brtVerbose bool
var brtLogFile string
var brtHelp bool

func brtCmd() *cobra.Command {
	brtHelpText := cli.FormatHelp(`Brt builds, signs, inspects and validates
		the firmware containers used by the boot ROM: TFTF firmware packages
		and the dual-header FFFF flash images that carry them.`)
	brtHelpEx := "  brt\n"
	brtHelpEx += "  brt help [<command-name>]\n"
	brtHelpEx += "    For help on <command-name>.  If not specified, " +
		"print this message."

	logLevelStr := ""
	brtCmd := &cobra.Command{
		Use:     "brt",
		Short:   "Brt is a tool for building boot ROM firmware images",
		Long:    brtHelpText,
		Example: brtHelpEx,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbosity := util.VERBOSITY_DEFAULT
			if brtSilent {
				verbosity = util.VERBOSITY_SILENT
			} else if brtQuiet {
				verbosity = util.VERBOSITY_QUIET
			} else if brtVerbose {
				verbosity = util.VERBOSITY_VERBOSE
			}

			var err error
			brtLogLevel, err = log.ParseLevel(logLevelStr)
			if err != nil {
				cli.BrtUsage(nil, util.NewBrtError(err.Error()))
			}

			if err := util.Init(brtLogLevel, brtLogFile,
				verbosity); err != nil {

				cli.BrtUsage(nil, err)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	brtCmd.PersistentFlags().BoolVarP(&brtVerbose, "verbose", "v", false,
		"Enable verbose output when executing commands")
	brtCmd.PersistentFlags().BoolVarP(&brtQuiet, "quiet", "q", false,
		"Be quiet; only display error output")
	brtCmd.PersistentFlags().BoolVarP(&brtSilent, "silent", "s", false,
		"Be silent; don't output anything")
	brtCmd.PersistentFlags().StringVarP(&logLevelStr, "loglevel", "l",
		"WARN", "Log level")
	brtCmd.PersistentFlags().StringVar(&brtLogFile, "outfile",
		"", "Filename to tee output to")
	brtCmd.PersistentFlags().BoolVarP(&brtHelp, "help", "h",
		false, "Help for brt commands")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Display the brt version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s\n", BrtVersionStr)
		},
	}
	brtCmd.AddCommand(versionCmd)

	return brtCmd
}

func main() {
	cmd := brtCmd()

	cli.AddTftfCommands(cmd)
	cli.AddFfffCommands(cmd)
	cli.AddFlashCommands(cmd)

	cmd.Execute()
}
