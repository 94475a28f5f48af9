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
	"encoding/binary"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/MotorolaMobilityLLC/bootrom-tools/artifact/tftf"
	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

// FFFF element types.
const (
	ELT_TYPE_STAGE_2_FW   = 0x01
	ELT_TYPE_STAGE_3_FW   = 0x02
	ELT_TYPE_IMS_CERT     = 0x03
	ELT_TYPE_CMS_CERT     = 0x04
	ELT_TYPE_DATA         = 0x05
	ELT_TYPE_END_OF_TABLE = 0xfe
)

// Packed size of one element table entry:
// type(4) + id(4) + generation(4) + location(4) + length(4).
const ELT_ENTRY_SIZE = 20

var validEltTypes = map[uint32]bool{
	ELT_TYPE_STAGE_2_FW:   true,
	ELT_TYPE_STAGE_3_FW:   true,
	ELT_TYPE_IMS_CERT:     true,
	ELT_TYPE_CMS_CERT:     true,
	ELT_TYPE_DATA:         true,
	ELT_TYPE_END_OF_TABLE: true,
}

var eltTypeNameMap = map[uint32]string{
	ELT_TYPE_STAGE_2_FW:   "Stage 2 firmware",
	ELT_TYPE_STAGE_3_FW:   "Stage 3 firmware",
	ELT_TYPE_IMS_CERT:     "IMS certificate",
	ELT_TYPE_CMS_CERT:     "CMS certificate",
	ELT_TYPE_DATA:         "Data",
	ELT_TYPE_END_OF_TABLE: "End of table",
}

var eltTypeShortNameMap = map[uint32]string{
	ELT_TYPE_STAGE_2_FW:   "s2fw",
	ELT_TYPE_STAGE_3_FW:   "s3fw",
	ELT_TYPE_IMS_CERT:     "ims",
	ELT_TYPE_CMS_CERT:     "cms",
	ELT_TYPE_DATA:         "data",
	ELT_TYPE_END_OF_TABLE: "eot",
}

func EltTypeName(eltType uint32) string {
	name, ok := eltTypeNameMap[eltType]
	if !ok {
		return "?"
	}

	return name
}

func EltTypeShortName(eltType uint32) string {
	name, ok := eltTypeShortNameMap[eltType]
	if !ok {
		return "?"
	}

	return name
}

// ParseEltType converts a short element type name ("s2fw", "data", ...) into
// its numeric value.
func ParseEltType(name string) (uint32, error) {
	for typ, typName := range eltTypeShortNameMap {
		if typName == name {
			return typ, nil
		}
	}

	return 0, util.FmtBrtError("Unknown element type \"%s\"", name)
}

// Element is one entry of an FFFF element table.  A firmware element also
// carries its parsed TFTF image; end-of-table entries carry neither a TFTF
// nor a payload.
type Element struct {
	Type       uint32
	Id         uint32
	Generation uint32
	Location   uint32
	Length     uint32

	// Parsed view of the payload for firmware elements; nil for
	// certificate, data and end-of-table entries.
	Tftf *tftf.Tftf

	payload []byte
}

// NewEndElement builds the table-terminating entry.
func NewEndElement() Element {
	return Element{Type: ELT_TYPE_END_OF_TABLE}
}

// NewElement builds a populated element entry from a payload blob.  The
// length covers the entire blob (for firmware elements, the TFTF header
// included).  Location 0 asks PostProcess to auto-assign a flash offset.
func NewElement(eltType uint32, id uint32, generation uint32,
	location uint32, payload []byte) (Element, error) {

	if eltType == ELT_TYPE_END_OF_TABLE {
		return Element{}, util.NewBrtError(
			"End-of-table elements carry no payload")
	}
	if !validEltTypes[eltType] {
		return Element{}, util.FmtBrtError(
			"Invalid element type 0x%02x", eltType)
	}

	e := Element{
		Type:       eltType,
		Id:         id,
		Generation: generation,
		Location:   location,
		Length:     uint32(len(payload)),
		payload:    payload,
	}

	if eltType == ELT_TYPE_STAGE_2_FW || eltType == ELT_TYPE_STAGE_3_FW {
		t, err := tftf.Parse(payload)
		if err != nil {
			return Element{}, util.PreBrtError(err,
				"Firmware element payload is not a TFTF")
		}
		e.Tftf = t
	}

	return e, nil
}

// NewElementFromFile builds a populated element entry whose payload is read
// from the named file.  Firmware elements get the TFTF extension retry.
func NewElementFromFile(eltType uint32, id uint32, generation uint32,
	location uint32, filename string) (Element, error) {

	if eltType == ELT_TYPE_STAGE_2_FW || eltType == ELT_TYPE_STAGE_3_FW {
		t, err := tftf.Read(filename)
		if err != nil {
			return Element{}, err
		}
		return NewElement(eltType, id, generation, location, t.Bytes())
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return Element{}, util.FmtBrtError("Unable to read \"%s\": %s",
			filename, err.Error())
	}

	return NewElement(eltType, id, generation, location, data)
}

// IsEnd indicates whether this entry is the end-of-table marker.
func (e *Element) IsEnd() bool {
	return e.Type == ELT_TYPE_END_OF_TABLE
}

// Payload returns the element's blob bytes, if it has any in memory.
func (e *Element) Payload() []byte {
	return e.payload
}

// Pack writes the element entry into buf at offset and returns the offset of
// the next entry.
func (e *Element) Pack(buf []byte, offset int) int {
	binary.LittleEndian.PutUint32(buf[offset:], e.Type)
	binary.LittleEndian.PutUint32(buf[offset+4:], e.Id)
	binary.LittleEndian.PutUint32(buf[offset+8:], e.Generation)
	binary.LittleEndian.PutUint32(buf[offset+12:], e.Location)
	binary.LittleEndian.PutUint32(buf[offset+16:], e.Length)

	return offset + ELT_ENTRY_SIZE
}

// Unpack reads an element entry from buf at offset.  It fails softly: the
// return value reports whether the entry carries a recognized type.
func (e *Element) Unpack(buf []byte, offset int) bool {
	e.Type = binary.LittleEndian.Uint32(buf[offset:])
	e.Id = binary.LittleEndian.Uint32(buf[offset+4:])
	e.Generation = binary.LittleEndian.Uint32(buf[offset+8:])
	e.Location = binary.LittleEndian.Uint32(buf[offset+12:])
	e.Length = binary.LittleEndian.Uint32(buf[offset+16:])

	return validEltTypes[e.Type]
}

// LoadBlob captures the element's payload from the flash buffer and, for
// firmware elements, parses the wrapped TFTF.  Errors here degrade the
// element's display only; table-level validity is judged separately.
func (e *Element) LoadBlob(flash []byte) {
	if e.IsEnd() {
		return
	}

	start := int(e.Location)
	end := start + int(e.Length)
	if start < 0 || end > len(flash) || end < start {
		return
	}

	e.payload = flash[start:end]

	if e.Type == ELT_TYPE_STAGE_2_FW || e.Type == ELT_TYPE_STAGE_3_FW {
		t, err := tftf.Parse(e.payload)
		if err != nil {
			log.Debugf("element at 0x%08x: not a parseable TFTF: %s",
				e.Location, err.Error())
			return
		}
		e.Tftf = t
	}
}

// Validate checks a single element against the usable flash address window
// [rangeLow, rangeHigh) and the erase block alignment rule.  All defects are
// reported, not just the first; the return value is their conjunction.
func (e *Element) Validate(rangeLow uint32, rangeHigh uint32,
	eraseBlockSize uint32) bool {

	if e.IsEnd() {
		return true
	}

	ok := true

	if e.Location < rangeLow || e.Location >= rangeHigh {
		util.ErrorMessage(util.VERBOSITY_QUIET,
			"Error: %s element location 0x%08x outside [0x%08x, 0x%08x)\n",
			EltTypeShortName(e.Type), e.Location, rangeLow, rangeHigh)
		ok = false
	}

	if eraseBlockSize != 0 && !util.BlockAligned(e.Location, eraseBlockSize) {
		util.ErrorMessage(util.VERBOSITY_QUIET,
			"Error: %s element location 0x%08x not block aligned\n",
			EltTypeShortName(e.Type), e.Location)
		ok = false
	}

	if !validEltTypes[e.Type] {
		util.ErrorMessage(util.VERBOSITY_QUIET,
			"Error: invalid element type 0x%02x\n", e.Type)
		ok = false
	}

	return ok
}

// ValidateAgainst checks this element against another table entry for
// overlapping flash ranges and for duplicate (type, id, generation) keys.
func (e *Element) ValidateAgainst(other *Element) (collision bool,
	duplicate bool) {

	if e.IsEnd() || other.IsEnd() {
		return false, false
	}

	startA := e.Location
	endA := startA + e.Length - 1
	startB := other.Location
	endB := startB + other.Length - 1
	if endB >= startA && startB <= endA {
		collision = true
	}

	if e.Type == other.Type && e.Id == other.Id &&
		e.Generation == other.Generation {

		duplicate = true
	}

	return collision, duplicate
}

// SameAs indicates whether two element entries are structurally identical.
func (e *Element) SameAs(other *Element) bool {
	return e.Type == other.Type &&
		e.Id == other.Id &&
		e.Generation == other.Generation &&
		e.Location == other.Location &&
		e.Length == other.Length
}

// Write dumps the element's payload to a file (used when exploding a flash
// image into its parts).
func (e *Element) Write(filename string) error {
	if e.payload == nil {
		return util.NewBrtError("Element has no payload to write")
	}

	if err := os.WriteFile(filename, e.payload, 0666); err != nil {
		return util.FmtBrtError("Unable to write \"%s\": %s",
			filename, err.Error())
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT, "Wrote %s\n", filename)
	return nil
}

func (e *Element) Map(offset int) map[string]interface{} {
	return map[string]interface{}{
		"type":       e.Type,
		"_type_name": EltTypeName(e.Type),
		"id":         e.Id,
		"generation": e.Generation,
		"location":   e.Location,
		"length":     e.Length,
		"_offset":    offset,
	}
}
