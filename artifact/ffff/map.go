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

package ffff

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

const MAP_FILE_EXTENSION = ".map"

// Map produces a display map of one header: fixed fields plus one child map
// per element table entry.  Derived values are prefixed with underscores.
func (h *Header) Map() map[string]interface{} {
	elements := []interface{}{}
	offset := h.offset + h.layout.offElements
	for i := range h.Elements {
		elements = append(elements, h.Elements[i].Map(offset))
		offset += ELT_ENTRY_SIZE
	}

	return map[string]interface{}{
		"sentinel":                 h.Sentinel,
		"timestamp":                h.Timestamp,
		"flash_image_name":         h.FlashImageName,
		"flash_capacity":           h.FlashCapacity,
		"erase_block_size":         h.EraseBlockSize,
		"header_size":              h.HeaderSize,
		"flash_image_length":       h.FlashImageLength,
		"header_generation_number": h.HeaderGeneration,
		"reserved":                 h.Reserved,
		"tail_sentinel":            h.TailSentinel,
		"elements":                 elements,
		"_offset":                  h.offset,
		"_validity":                ValidityName(h.validity),
	}
}

// Map produces a display map of the whole flash image.  When the two
// headers agree the second is collapsed to a reference.
func (r *RomImage) Map() map[string]interface{} {
	m := map[string]interface{}{
		"header[0]": r.Headers[0].Map(),
		"_length":   len(r.buf),
		"_same":     r.SameAs(),
	}

	if r.SameAs() {
		m["header[1]"] = "same as header[0]"
	} else {
		m["header[1]"] = r.Headers[1].Map()
	}

	return m
}

// Json produces a JSON rendering of the image's display map.
func (r *RomImage) Json() (string, error) {
	m := r.Map()

	b, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return "", util.ChildBrtError(err)
	}

	return string(b), nil
}

// WriteMap emits "name  offset" lines for one header's fields, element
// table slots included.
func (h *Header) WriteMap(w io.Writer, baseOffset int, prefix string) error {
	if prefix != "" {
		prefix += "."
	}

	wf := func(name string, offset int) error {
		if _, err := fmt.Fprintf(w, "%s%s  %08x\n", prefix, name,
			baseOffset+h.offset+offset); err != nil {

			return util.ChildBrtError(err)
		}
		return nil
	}

	fields := []struct {
		name string
		off  int
	}{
		{"sentinel", HDR_OFF_SENTINEL},
		{"timestamp", HDR_OFF_TIMESTAMP},
		{"flash_image_name", HDR_OFF_NAME},
		{"flash_capacity", HDR_OFF_FLASH_CAPACITY},
		{"erase_block_size", HDR_OFF_ERASE_BLOCK_SIZE},
		{"header_size", HDR_OFF_HEADER_SIZE},
		{"flash_image_length", HDR_OFF_FLASH_IMG_LENGTH},
		{"header_generation_number", HDR_OFF_HEADER_GENERATION},
	}
	for _, f := range fields {
		if err := wf(f.name, f.off); err != nil {
			return err
		}
	}

	for i := 0; i < h.layout.numReserved; i++ {
		name := fmt.Sprintf("reserved[%d]", i)
		if err := wf(name, h.layout.offReserved+i*RSVD_WORD_SIZE); err != nil {
			return err
		}
	}

	for i := 0; i < h.layout.numElements; i++ {
		entryOff := h.layout.offElements + i*ELT_ENTRY_SIZE
		entryFields := []struct {
			name string
			off  int
		}{
			{"type", 0},
			{"id", 4},
			{"generation", 8},
			{"location", 12},
			{"length", 16},
		}
		for _, f := range entryFields {
			name := fmt.Sprintf("element[%d].%s", i, f.name)
			if err := wf(name, entryOff+f.off); err != nil {
				return err
			}
		}
	}

	return wf("tail_sentinel", h.layout.offTail)
}

// WriteMap emits the field offsets of both headers, then the interior maps
// of every located element.  Firmware element interiors are expanded with
// their TFTF field maps.
func (r *RomImage) WriteMap(w io.Writer, baseOffset int, prefix string) error {
	sep := ""
	if prefix != "" {
		sep = "."
	}

	for i, h := range r.Headers {
		hdrPrefix := fmt.Sprintf("%s%sffff[%d]", prefix, sep, i)
		if err := h.WriteMap(w, baseOffset, hdrPrefix); err != nil {
			return err
		}
	}

	h0 := r.Headers[0]
	for i := range h0.Elements {
		elt := &h0.Elements[i]
		if elt.IsEnd() {
			break
		}

		eltPrefix := fmt.Sprintf("%s%selement[%d].%s", prefix, sep, i,
			EltTypeShortName(elt.Type))

		if elt.Tftf != nil {
			if err := elt.Tftf.WriteMap(w,
				baseOffset+int(elt.Location), eltPrefix); err != nil {

				return err
			}
		} else {
			if _, err := fmt.Fprintf(w, "%s  %08x\n", eltPrefix,
				baseOffset+int(elt.Location)); err != nil {

				return util.ChildBrtError(err)
			}
		}
	}

	return nil
}

// CreateMapFile writes the field map of the flash image to a ".map" file
// derived from the image filename.
func (r *RomImage) CreateMapFile(baseName string, baseOffset int,
	prefix string) error {

	mapName := strings.TrimSuffix(baseName, extOf(baseName)) +
		MAP_FILE_EXTENSION

	f, err := os.Create(mapName)
	if err != nil {
		return util.FmtBrtError("Unable to create map file \"%s\": %s",
			mapName, err.Error())
	}
	defer f.Close()

	if err := r.WriteMap(f, baseOffset, prefix); err != nil {
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
