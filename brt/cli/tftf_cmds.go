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
	"os"

	"github.com/spf13/cobra"

	"github.com/MotorolaMobilityLLC/bootrom-tools/artifact/sig"
	"github.com/MotorolaMobilityLLC/bootrom-tools/artifact/tftf"
	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

var tftfCreateOut string
var tftfCreateName string
var tftfCreatePkgType string
var tftfCreateStart string
var tftfCreateUniproMfg string
var tftfCreateUniproPid string
var tftfCreateAraVid string
var tftfCreateAraPid string
var tftfCreateHeaderSize string
var tftfCreateSections []string
var tftfCreateMap bool

var tftfDisplayHexdump bool

var tftfMapBase string
var tftfMapPrefix string

var tftfSignType string
var tftfSignKeyName string
var tftfSignSigFile string
var tftfSignOut string

// addSectionFromSpec decodes one "type=code,file=...,load=..." argument and
// adds the section it describes.
func addSectionFromSpec(t *tftf.Tftf, spec string) error {
	kv, err := parseKeyValueSpec(spec)
	if err != nil {
		return err
	}

	var sectionType uint8
	var file string
	var class, id, load uint32

	for k, v := range kv {
		switch k {
		case "type":
			sectionType, err = tftf.ParseSectionType(v)
		case "file":
			file = v
		case "class":
			class, err = parseU32(v)
		case "id":
			id, err = parseU32(v)
		case "load":
			load, err = parseU32(v)
		default:
			err = util.FmtBrtError(
				"Unrecognized section field \"%s\"", k)
		}
		if err != nil {
			return err
		}
	}

	if file == "" {
		return util.FmtBrtError("Section \"%s\" missing \"file\"", spec)
	}

	return t.AddSectionFromFile(sectionType, class, id, file, load)
}

func tftfCreateRunCmd(cmd *cobra.Command, args []string) {
	if tftfCreateOut == "" {
		BrtUsage(cmd, util.NewBrtError("Must specify --out"))
	}
	if len(tftfCreateSections) == 0 {
		BrtUsage(cmd, util.NewBrtError("Must specify at least one --section"))
	}

	headerSize, err := parseU32(tftfCreateHeaderSize)
	if err != nil {
		BrtUsage(cmd, err)
	}

	t, err := tftf.New(headerSize)
	if err != nil {
		BrtUsage(nil, err)
	}

	t.FirmwarePackageName = tftfCreateName

	numFlags := []struct {
		val string
		dst *uint32
	}{
		{tftfCreatePkgType, &t.PackageType},
		{tftfCreateStart, &t.StartLocation},
		{tftfCreateUniproMfg, &t.UniproMfgId},
		{tftfCreateUniproPid, &t.UniproPid},
		{tftfCreateAraVid, &t.AraVid},
		{tftfCreateAraPid, &t.AraPid},
	}
	for _, f := range numFlags {
		if *f.dst, err = parseU32(f.val); err != nil {
			BrtUsage(cmd, err)
		}
	}

	for _, spec := range tftfCreateSections {
		if err := addSectionFromSpec(t, spec); err != nil {
			BrtUsage(nil, err)
		}
	}

	t.PostProcess()
	if !t.IsGood() {
		BrtUsage(nil, util.NewBrtError("Built TFTF failed validation"))
	}

	outName, err := t.Write(tftfCreateOut)
	if err != nil {
		BrtUsage(nil, err)
	}

	if tftfCreateMap {
		if err := t.CreateMapFile(outName, 0, t.FirmwarePackageName); err != nil {
			BrtUsage(nil, err)
		}
	}
}

func tftfDisplayRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		BrtUsage(cmd, util.NewBrtError("Must specify a TFTF file"))
	}

	t, err := tftf.Read(args[0])
	if err != nil {
		BrtUsage(nil, err)
	}

	s, err := t.Json()
	if err != nil {
		BrtUsage(nil, err)
	}
	util.StatusMessage(util.VERBOSITY_QUIET, "%s\n", s)

	if tftfDisplayHexdump {
		for i, section := range t.Sections {
			if section.IsEnd() {
				break
			}

			blob, err := t.SectionPayload(i)
			if err != nil {
				BrtUsage(nil, err)
			}

			util.StatusMessage(util.VERBOSITY_QUIET, "section[%d] (%s):\n",
				i, tftf.SectionTypeShortName(section.Type))
			for _, line := range util.HexDumpLines(blob, false, "    ") {
				util.StatusMessage(util.VERBOSITY_QUIET, "%s\n", line)
			}
		}
	}
}

func tftfMapRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		BrtUsage(cmd, util.NewBrtError("Must specify a TFTF file"))
	}

	t, err := tftf.Read(args[0])
	if err != nil {
		BrtUsage(nil, err)
	}

	base, err := parseU32(tftfMapBase)
	if err != nil {
		BrtUsage(cmd, err)
	}

	if err := t.WriteMap(os.Stdout, int(base), tftfMapPrefix); err != nil {
		BrtUsage(nil, err)
	}
}

func tftfSignRunCmd(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		BrtUsage(cmd, util.NewBrtError("Must specify a TFTF file"))
	}
	if tftfSignKeyName == "" || tftfSignSigFile == "" {
		BrtUsage(cmd, util.NewBrtError(
			"Must specify --key-name and --signature"))
	}

	t, err := tftf.Read(args[0])
	if err != nil {
		BrtUsage(nil, err)
	}

	sigType, err := sig.ParseSigType(tftfSignType)
	if err != nil {
		BrtUsage(cmd, err)
	}

	// The signature itself is computed externally over the byte ranges
	// this tool exposes; here it is only packaged and appended.
	signature, err := os.ReadFile(tftfSignSigFile)
	if err != nil {
		BrtUsage(nil, util.FmtBrtError("Unable to read \"%s\": %s",
			tftfSignSigFile, err.Error()))
	}

	sb, err := sig.NewSignatureBlock(sigType, tftfSignKeyName, signature)
	if err != nil {
		BrtUsage(nil, err)
	}

	blob, err := sb.Bytes()
	if err != nil {
		BrtUsage(nil, err)
	}

	if err := t.AddSection(tftf.SECTION_TYPE_SIGNATURE, 0, 0, blob,
		0); err != nil {

		BrtUsage(nil, err)
	}

	t.PostProcess()

	out := tftfSignOut
	if out == "" {
		out = args[0]
	}
	if _, err := t.Write(out); err != nil {
		BrtUsage(nil, err)
	}
}

func AddTftfCommands(cmd *cobra.Command) {
	tftfHelpText := FormatHelp(`The tftf command group creates, signs and
		inspects TFTF firmware packages.`)
	tftfCmd := &cobra.Command{
		Use:   "tftf",
		Short: "Create and inspect TFTF firmware packages",
		Long:  tftfHelpText,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.AddCommand(tftfCmd)

	createHelpText := FormatHelp(`Create a TFTF package from one or more
		section files.  Each --section argument is a comma separated list of
		key=value fields: type (code, data, manifest, certificate), file,
		and optionally class, id and load.`)
	createEx := "  brt tftf create -o fw --name bootrom" +
		" --section type=code,file=fw.bin,load=0x10000000\n"
	createCmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a TFTF package",
		Long:    createHelpText,
		Example: createEx,
		Run:     tftfCreateRunCmd,
	}
	createCmd.Flags().StringVarP(&tftfCreateOut, "out", "o", "",
		"Output filename")
	createCmd.Flags().StringVar(&tftfCreateName, "name", "",
		"Firmware package name")
	createCmd.Flags().StringVar(&tftfCreatePkgType, "type", "0",
		"Package type")
	createCmd.Flags().StringVar(&tftfCreateStart, "start", "0",
		"Start location (entry point)")
	createCmd.Flags().StringVar(&tftfCreateUniproMfg, "unipro-mfg", "0",
		"UniPro manufacturer id")
	createCmd.Flags().StringVar(&tftfCreateUniproPid, "unipro-pid", "0",
		"UniPro product id")
	createCmd.Flags().StringVar(&tftfCreateAraVid, "ara-vid", "0",
		"Ara vendor id")
	createCmd.Flags().StringVar(&tftfCreateAraPid, "ara-pid", "0",
		"Ara product id")
	createCmd.Flags().StringVar(&tftfCreateHeaderSize, "header-size", "0",
		"Header size in bytes (default 512)")
	createCmd.Flags().StringArrayVarP(&tftfCreateSections, "section", "e",
		nil, "Section specification (repeatable)")
	createCmd.Flags().BoolVar(&tftfCreateMap, "map", false,
		"Also emit a field offset map file")
	tftfCmd.AddCommand(createCmd)

	displayCmd := &cobra.Command{
		Use:   "display <tftf-file>",
		Short: "Display the contents of a TFTF package",
		Run:   tftfDisplayRunCmd,
	}
	displayCmd.Flags().BoolVar(&tftfDisplayHexdump, "hexdump", false,
		"Hex dump each section payload")
	tftfCmd.AddCommand(displayCmd)

	mapCmd := &cobra.Command{
		Use:   "map <tftf-file>",
		Short: "Print the field offset map of a TFTF package",
		Run:   tftfMapRunCmd,
	}
	mapCmd.Flags().StringVar(&tftfMapBase, "base", "0",
		"Base offset added to every map entry")
	mapCmd.Flags().StringVar(&tftfMapPrefix, "prefix", "",
		"Name prefix for map entries")
	tftfCmd.AddCommand(mapCmd)

	signHelpText := FormatHelp(`Append an externally computed signature to a
		TFTF package.  The signature file carries the raw signature bytes;
		they are wrapped in a signature block and appended as a signature
		section.`)
	signCmd := &cobra.Command{
		Use:   "sign <tftf-file>",
		Short: "Append a signature section to a TFTF package",
		Long:  signHelpText,
		Run:   tftfSignRunCmd,
	}
	signCmd.Flags().StringVar(&tftfSignType, "sig-type", "rsa2048-sha256",
		"Signature type")
	signCmd.Flags().StringVar(&tftfSignKeyName, "key-name", "",
		"Name of the signing key")
	signCmd.Flags().StringVar(&tftfSignSigFile, "signature", "",
		"File holding the raw signature bytes")
	signCmd.Flags().StringVarP(&tftfSignOut, "out", "o", "",
		"Output filename (default: rewrite the input)")
	tftfCmd.AddCommand(signCmd)
}
