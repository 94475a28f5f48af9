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
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/MotorolaMobilityLLC/bootrom-tools/artifact/ffff"
	"github.com/MotorolaMobilityLLC/bootrom-tools/brt/plan"
	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

var ffffCreatePlan string
var ffffCreateOutDir string
var ffffCreateOut string
var ffffCreateName string
var ffffCreateCapacity string
var ffffCreateEraseBlock string
var ffffCreateLength string
var ffffCreateGeneration string
var ffffCreateHeaderSize string
var ffffCreateElements []string
var ffffCreateMap bool

var ffffExplodeOut string

var ffffMapBase string
var ffffMapPrefix string

// addElementFromSpec decodes one "type=s2fw,id=1,file=..." argument and
// adds the element it describes to both headers.
func addElementFromSpec(r *ffff.RomImage, spec string) error {
	kv, err := parseKeyValueSpec(spec)
	if err != nil {
		return err
	}

	var eltType uint32
	var file string
	var id, generation, location uint32

	for k, v := range kv {
		switch k {
		case "type":
			eltType, err = ffff.ParseEltType(v)
		case "file":
			file = v
		case "id":
			id, err = parseU32(v)
		case "generation":
			generation, err = parseU32(v)
		case "location":
			location, err = parseU32(v)
		default:
			err = util.FmtBrtError(
				"Unrecognized element field \"%s\"", k)
		}
		if err != nil {
			return err
		}
	}

	if eltType == 0 {
		return util.FmtBrtError("Element \"%s\" missing \"type\"", spec)
	}
	if file == "" {
		return util.FmtBrtError("Element \"%s\" missing \"file\"", spec)
	}

	return r.AddElementFromFile(eltType, id, generation, location, file)
}

func ffffCreateFromFlags(cmd *cobra.Command) {
	if ffffCreateOut == "" {
		BrtUsage(cmd, util.NewBrtError("Must specify --out"))
	}
	if len(ffffCreateElements) == 0 {
		BrtUsage(cmd, util.NewBrtError(
			"Must specify at least one --element"))
	}

	var capacity, eraseBlock, length, generation, headerSize uint32
	numFlags := []struct {
		val string
		dst *uint32
	}{
		{ffffCreateCapacity, &capacity},
		{ffffCreateEraseBlock, &eraseBlock},
		{ffffCreateLength, &length},
		{ffffCreateGeneration, &generation},
		{ffffCreateHeaderSize, &headerSize},
	}
	for _, f := range numFlags {
		var err error
		if *f.dst, err = parseU32(f.val); err != nil {
			BrtUsage(cmd, err)
		}
	}

	r, err := ffff.NewRomImage(ffffCreateName, capacity, eraseBlock, length,
		generation, headerSize)
	if err != nil {
		BrtUsage(nil, err)
	}

	for _, spec := range ffffCreateElements {
		if err := addElementFromSpec(r, spec); err != nil {
			BrtUsage(nil, err)
		}
	}

	if err := r.PostProcess(); err != nil {
		var overflow *ffff.LayoutOverflowError
		if errors.As(err, &overflow) {
			BrtUsage(nil, util.FmtBrtError("Flash layout overflow: %s",
				overflow.Error()))
		}
		BrtUsage(nil, err)
	}

	outName, err := r.Write(ffffCreateOut)
	if err != nil {
		BrtUsage(nil, err)
	}

	if ffffCreateMap {
		if err := r.CreateMapFile(outName, 0, ffffCreateName); err != nil {
			BrtUsage(nil, err)
		}
	}
}

func ffffCreateRunCmd(cmd *cobra.Command, args []string) {
	if ffffCreatePlan == "" {
		ffffCreateFromFlags(cmd)
		return
	}

	if anyFlagChanged(cmd.Flags(), "out", "element", "flash-capacity",
		"erase-block-size", "length") {

		BrtUsage(cmd, util.NewBrtError(
			"--plan cannot be combined with image flags"))
	}

	p, err := plan.Load(ffffCreatePlan)
	if err != nil {
		BrtUsage(nil, err)
	}

	outDir := ffffCreateOutDir
	if outDir == "" {
		outDir = "."
	}

	if err := p.Emit(outDir); err != nil {
		BrtUsage(nil, err)
	}
}

func ffffDisplayRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		BrtUsage(cmd, util.NewBrtError("Must specify an FFFF file"))
	}

	r, err := ffff.ReadRomImage(args[0])
	if err != nil {
		BrtUsage(nil, err)
	}

	s, err := r.Json()
	if err != nil {
		BrtUsage(nil, err)
	}
	util.StatusMessage(util.VERBOSITY_QUIET, "%s\n", s)

	for i, h := range r.Headers {
		util.StatusMessage(util.VERBOSITY_DEFAULT, "header %d: %s\n",
			i, ffff.ValidityName(h.Validity()))
	}
}

func ffffExplodeRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		BrtUsage(cmd, util.NewBrtError("Must specify an FFFF file"))
	}

	r, err := ffff.ReadRomImage(args[0])
	if err != nil {
		BrtUsage(nil, err)
	}

	root := ffffExplodeOut
	if root == "" {
		root = "element"
	}

	if err := r.Explode(root); err != nil {
		BrtUsage(nil, err)
	}
}

func ffffMapRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		BrtUsage(cmd, util.NewBrtError("Must specify an FFFF file"))
	}

	r, err := ffff.ReadRomImage(args[0])
	if err != nil {
		BrtUsage(nil, err)
	}

	base, err := parseU32(ffffMapBase)
	if err != nil {
		BrtUsage(cmd, err)
	}

	if err := r.WriteMap(os.Stdout, int(base), ffffMapPrefix); err != nil {
		BrtUsage(nil, err)
	}
}

func AddFfffCommands(cmd *cobra.Command) {
	ffffHelpText := FormatHelp(`The ffff command group builds and inspects
		FFFF flash images: dual redundant flash headers wrapping one or more
		TFTF firmware packages.`)
	ffffCmd := &cobra.Command{
		Use:   "ffff",
		Short: "Build and inspect FFFF flash images",
		Long:  ffffHelpText,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.AddCommand(ffffCmd)

	createHelpText := FormatHelp(`Build an FFFF flash image, either from a
		JSON plan file (--plan) or from command line flags.  Each --element
		argument is a comma separated list of key=value fields: type (s2fw,
		s3fw, ims, cms, data), file, and optionally id, generation and
		location.`)
	createEx := "  brt ffff create -o flash --flash-capacity 0x200000" +
		" --erase-block-size 0x800 --element type=s2fw,id=1,file=fw\n" +
		"  brt ffff create --plan flash.json --outdir out\n"
	createCmd := &cobra.Command{
		Use:     "create",
		Short:   "Build an FFFF flash image",
		Long:    createHelpText,
		Example: createEx,
		Run:     ffffCreateRunCmd,
	}
	createCmd.Flags().StringVar(&ffffCreatePlan, "plan", "",
		"JSON flash plan file")
	createCmd.Flags().StringVar(&ffffCreateOutDir, "outdir", "",
		"Output directory for plan artifacts")
	createCmd.Flags().StringVarP(&ffffCreateOut, "out", "o", "",
		"Output filename")
	createCmd.Flags().StringVar(&ffffCreateName, "name", "",
		"Flash image name")
	createCmd.Flags().StringVar(&ffffCreateCapacity, "flash-capacity", "0",
		"Flash device capacity in bytes")
	createCmd.Flags().StringVar(&ffffCreateEraseBlock, "erase-block-size",
		"0", "Flash erase block size in bytes")
	createCmd.Flags().StringVar(&ffffCreateLength, "length", "0",
		"Flash image length (default: derived from the elements)")
	createCmd.Flags().StringVar(&ffffCreateGeneration, "generation", "0",
		"Header generation number")
	createCmd.Flags().StringVar(&ffffCreateHeaderSize, "header-size", "0",
		"Header size in bytes (default 512)")
	createCmd.Flags().StringArrayVarP(&ffffCreateElements, "element", "e",
		nil, "Element specification (repeatable)")
	createCmd.Flags().BoolVar(&ffffCreateMap, "map", false,
		"Also emit a field offset map file")
	ffffCmd.AddCommand(createCmd)

	displayCmd := &cobra.Command{
		Use:   "display <ffff-file>",
		Short: "Display the contents of an FFFF flash image",
		Run:   ffffDisplayRunCmd,
	}
	ffffCmd.AddCommand(displayCmd)

	explodeCmd := &cobra.Command{
		Use:   "explode <ffff-file>",
		Short: "Extract every element of a flash image to its own file",
		Run:   ffffExplodeRunCmd,
	}
	explodeCmd.Flags().StringVarP(&ffffExplodeOut, "out", "o", "",
		"Root name for the extracted files")
	ffffCmd.AddCommand(explodeCmd)

	mapCmd := &cobra.Command{
		Use:   "map <ffff-file>",
		Short: "Print the field offset map of a flash image",
		Run:   ffffMapRunCmd,
	}
	mapCmd.Flags().StringVar(&ffffMapBase, "base", "0",
		"Base offset added to every map entry")
	mapCmd.Flags().StringVar(&ffffMapPrefix, "prefix", "",
		"Name prefix for map entries")
	ffffCmd.AddCommand(mapCmd)
}
