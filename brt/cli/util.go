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
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

func BrtUsage(cmd *cobra.Command, err error) {
	if err != nil {
		if bErr, ok := err.(*util.BrtError); ok {
			log.Debugf("%s", bErr.StackTrace)
			fmt.Fprintf(os.Stderr, "Error: %s\n", bErr.Text)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		}
	}

	if cmd != nil {
		fmt.Printf("\n")
		fmt.Printf("%s - ", cmd.Name())
		cmd.Help()
	}
	os.Exit(1)
}

// Display help text with a max line width of 79 characters
func FormatHelp(text string) string {
	// first compress all new lines and extra spaces
	words := regexp.MustCompile("\\s+").Split(text, -1)
	linelen := 0
	fmtText := ""
	for _, word := range words {
		word = strings.Trim(word, "\n ") + " "
		tmplen := linelen + len(word)
		if tmplen >= 80 {
			fmtText += "\n"
			linelen = 0
		}
		fmtText += word
		linelen += len(word)
	}
	return fmtText
}

// anyFlagChanged indicates whether the user set any of the named flags on
// the command line.
func anyFlagChanged(flags *pflag.FlagSet, names ...string) bool {
	for _, name := range names {
		if f := flags.Lookup(name); f != nil && f.Changed {
			return true
		}
	}
	return false
}

// parseU32 parses a command line number, accepting 0x-prefixed hex.
func parseU32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, util.FmtBrtError("Invalid number \"%s\"", s)
	}
	return uint32(n), nil
}

// parseKeyValueSpec splits a "k1=v1,k2=v2" command line argument into a
// field map.
func parseKeyValueSpec(spec string) (map[string]string, error) {
	kv := map[string]string{}

	for _, field := range strings.Split(spec, ",") {
		parts := strings.SplitN(field, "=", 2)
		if len(parts) != 2 {
			return nil, util.FmtBrtError(
				"Invalid field \"%s\" in \"%s\"", field, spec)
		}
		kv[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}

	return kv, nil
}
