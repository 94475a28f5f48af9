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

package tftf

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MotorolaMobilityLLC/bootrom-tools/artifact/sig"
	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

const MAP_FILE_EXTENSION = ".map"

var validityNameMap = map[int]string{
	TFTF_VALID:                 "valid",
	TFTF_INVALID:               "invalid",
	TFTF_VALID_WITH_COLLISIONS: "valid-with-collisions",
}

func ValidityName(validity int) string {
	name, ok := validityNameMap[validity]
	if !ok {
		return "?"
	}

	return name
}

// Map produces a display map of the image: header fields plus one child map
// per section table entry.  Derived values are prefixed with underscores.
func (t *Tftf) Map() map[string]interface{} {
	sections := []interface{}{}
	offset := t.layout.offSections
	for i := range t.Sections {
		sections = append(sections, t.Sections[i].Map(offset))
		offset += SECTION_ENTRY_SIZE
	}

	m := map[string]interface{}{
		"sentinel":          t.Sentinel,
		"header_size":       t.HeaderSize,
		"timestamp":         t.Timestamp,
		"name":              t.FirmwarePackageName,
		"package_type":      t.PackageType,
		"start_location":    t.StartLocation,
		"unipro_mfg_id":     t.UniproMfgId,
		"unipro_pid":        t.UniproPid,
		"ara_vid":           t.AraVid,
		"ara_pid":           t.AraPid,
		"reserved":          t.Reserved,
		"sections":          sections,
		"_length":           t.length,
		"_validity":         ValidityName(t.validity),
		"_collisions_found": t.collisionsFound,
	}
	if t.collisionsFound {
		m["_collisions"] = t.collisions
	}

	return m
}

// Json produces a JSON rendering of the image's display map.
func (t *Tftf) Json() (string, error) {
	m := t.Map()

	b, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return "", util.ChildBrtError(err)
	}

	return string(b), nil
}

// WriteMap emits "name  offset" lines for every field in the image, for
// consumption by external debug tooling.  Unused section table slots are
// included so a debugger can patch them in place.
func (t *Tftf) WriteMap(w io.Writer, baseOffset int, prefix string) error {
	if prefix != "" {
		prefix += "."
	}

	wf := func(name string, offset int) error {
		if _, err := fmt.Fprintf(w, "%s%s  %08x\n", prefix, name,
			baseOffset+offset); err != nil {

			return util.ChildBrtError(err)
		}
		return nil
	}

	fields := []struct {
		name string
		off  int
	}{
		{"sentinel", HDR_OFF_SENTINEL},
		{"header_size", HDR_OFF_HEADER_SIZE},
		{"timestamp", HDR_OFF_TIMESTAMP},
		{"firmware_name", HDR_OFF_NAME},
		{"package_type", HDR_OFF_PACKAGE_TYPE},
		{"start_location", HDR_OFF_START_LOCATION},
		{"unipro_mfg_id", HDR_OFF_UNIPRO_MFG_ID},
		{"unipro_pid", HDR_OFF_UNIPRO_PID},
		{"ara_vid", HDR_OFF_ARA_VID},
		{"ara_pid", HDR_OFF_ARA_PID},
	}
	for _, f := range fields {
		if err := wf(f.name, f.off); err != nil {
			return err
		}
	}

	for i := 0; i < t.layout.numReserved; i++ {
		name := fmt.Sprintf("reserved[%d]", i)
		if err := wf(name, t.layout.offReserved+i*RSVD_WORD_SIZE); err != nil {
			return err
		}
	}

	// Every table slot, used or not.
	for i := 0; i < t.layout.numSections; i++ {
		entryOff := t.layout.offSections + i*SECTION_ENTRY_SIZE
		entryFields := []struct {
			name string
			off  int
		}{
			{"type_class", 0},
			{"id", 4},
			{"length", 8},
			{"load_address", 12},
			{"expanded_length", 16},
		}
		for _, f := range entryFields {
			name := fmt.Sprintf("section[%d].%s", i, f.name)
			if err := wf(name, entryOff+f.off); err != nil {
				return err
			}
		}
	}

	// Payload offsets for the populated sections.
	payloadOff := int(t.HeaderSize)
	for i, section := range t.Sections {
		if section.IsEnd() {
			break
		}

		if section.Type == SECTION_TYPE_SIGNATURE {
			blob, err := t.SectionPayload(i)
			if err != nil {
				return err
			}
			if _, err := sig.ParseSignatureBlock(blob); err != nil {
				return err
			}
			sigPrefix := fmt.Sprintf("%ssection[%d].signature", prefix, i)
			if err := sig.WriteMap(w, baseOffset+payloadOff,
				sigPrefix); err != nil {

				return err
			}
		} else {
			name := fmt.Sprintf("section[%d].%s", i,
				SectionTypeShortName(section.Type))
			if err := wf(name, payloadOff); err != nil {
				return err
			}
		}

		payloadOff += int(section.Length)
	}

	return nil
}

// CreateMapFile writes the field map of the image to a ".map" file derived
// from the image filename.
func (t *Tftf) CreateMapFile(baseName string, baseOffset int,
	prefix string) error {

	mapName := strings.TrimSuffix(baseName, extOf(baseName)) +
		MAP_FILE_EXTENSION

	f, err := os.Create(mapName)
	if err != nil {
		return util.FmtBrtError("Unable to create map file \"%s\": %s",
			mapName, err.Error())
	}
	defer f.Close()

	if err := t.WriteMap(f, baseOffset, prefix); err != nil {
		return err
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT, "Wrote %s\n", mapName)
	return nil
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i != -1 &&
		!strings.Contains(name[i:], "/") {

		return name[i:]
	}
	return ""
}
