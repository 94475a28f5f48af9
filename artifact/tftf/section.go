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
	"encoding/binary"
	"os"

	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

// TFTF section types.
const (
	SECTION_TYPE_RESERVED           = 0x00
	SECTION_TYPE_RAW_CODE           = 0x01
	SECTION_TYPE_RAW_DATA           = 0x02
	SECTION_TYPE_COMPRESSED_CODE    = 0x03
	SECTION_TYPE_COMPRESSED_DATA    = 0x04
	SECTION_TYPE_MANIFEST           = 0x05
	SECTION_TYPE_SIGNATURE          = 0x80
	SECTION_TYPE_CERTIFICATE        = 0x81
	SECTION_TYPE_END_OF_DESCRIPTORS = 0xfe
)

// Packed size of one section table entry:
// type(1) + class(3) + id(4) + length(4) + load_address(4) +
// expanded_length(4).
const SECTION_ENTRY_SIZE = 20

// Signature and certificate sections are not loaded to an address; their
// load_address carries this sentinel instead.
const UNSPECIFIED_LOAD_ADDRESS = 0xffffffff

var validSectionTypes = map[uint8]bool{
	SECTION_TYPE_RAW_CODE:           true,
	SECTION_TYPE_RAW_DATA:           true,
	SECTION_TYPE_COMPRESSED_CODE:    true,
	SECTION_TYPE_COMPRESSED_DATA:    true,
	SECTION_TYPE_MANIFEST:           true,
	SECTION_TYPE_SIGNATURE:          true,
	SECTION_TYPE_CERTIFICATE:        true,
	SECTION_TYPE_END_OF_DESCRIPTORS: true,
}

var sectionTypeNameMap = map[uint8]string{
	SECTION_TYPE_RESERVED:           "Reserved",
	SECTION_TYPE_RAW_CODE:           "Code",
	SECTION_TYPE_RAW_DATA:           "Data",
	SECTION_TYPE_COMPRESSED_CODE:    "Compressed code",
	SECTION_TYPE_COMPRESSED_DATA:    "Compressed data",
	SECTION_TYPE_MANIFEST:           "Manifest",
	SECTION_TYPE_SIGNATURE:          "Signature",
	SECTION_TYPE_CERTIFICATE:        "Certificate",
	SECTION_TYPE_END_OF_DESCRIPTORS: "End of descriptors",
}

var sectionTypeShortNameMap = map[uint8]string{
	SECTION_TYPE_RESERVED:           "reserved",
	SECTION_TYPE_RAW_CODE:           "code",
	SECTION_TYPE_RAW_DATA:           "data",
	SECTION_TYPE_COMPRESSED_CODE:    "compressed_code",
	SECTION_TYPE_COMPRESSED_DATA:    "compressed_data",
	SECTION_TYPE_MANIFEST:           "manifest",
	SECTION_TYPE_SIGNATURE:          "signature",
	SECTION_TYPE_CERTIFICATE:        "certificate",
	SECTION_TYPE_END_OF_DESCRIPTORS: "eot",
}

func SectionTypeName(sectionType uint8) string {
	name, ok := sectionTypeNameMap[sectionType]
	if !ok {
		return "?"
	}

	return name
}

func SectionTypeShortName(sectionType uint8) string {
	name, ok := sectionTypeShortNameMap[sectionType]
	if !ok {
		return "?"
	}

	return name
}

// ParseSectionType converts a short section type name ("code", "data",
// "manifest", ...) into its numeric value.
func ParseSectionType(name string) (uint8, error) {
	for typ, typName := range sectionTypeShortNameMap {
		if typName == name {
			return typ, nil
		}
	}

	return SECTION_TYPE_RESERVED, util.FmtBrtError(
		"Unknown section type \"%s\"", name)
}

// Section is one entry of a TFTF section table.  The first packed word holds
// the type in its low byte and the class in its high 24 bits.
type Section struct {
	Type           uint8
	Class          uint32
	Id             uint32
	Length         uint32
	LoadAddress    uint32
	ExpandedLength uint32
}

// NewSection builds a section entry from explicit fields.  Signature and
// certificate sections get the sentinel load address regardless of the
// address supplied.
func NewSection(sectionType uint8, class uint32, id uint32, length uint32,
	loadAddress uint32, expandedLength uint32) Section {

	s := Section{
		Type:           sectionType,
		Class:          class,
		Id:             id,
		Length:         length,
		LoadAddress:    loadAddress,
		ExpandedLength: expandedLength,
	}

	if sectionType == SECTION_TYPE_SIGNATURE ||
		sectionType == SECTION_TYPE_CERTIFICATE {

		s.LoadAddress = UNSPECIFIED_LOAD_ADDRESS
	}

	return s
}

// NewSectionFromFile builds a section entry sized from the named file.
func NewSectionFromFile(sectionType uint8, class uint32, id uint32,
	filename string, loadAddress uint32) (Section, error) {

	info, err := os.Stat(filename)
	if err != nil {
		return Section{}, util.FmtBrtError(
			"Section file \"%s\" is invalid or missing", filename)
	}

	// Compression is not implemented, so the packed and expanded lengths
	// both take the input file length.
	size := uint32(info.Size())
	return NewSection(sectionType, class, id, size, loadAddress, size), nil
}

// IsEnd indicates whether this entry is the end-of-table marker.
func (s *Section) IsEnd() bool {
	return s.Type == SECTION_TYPE_END_OF_DESCRIPTORS
}

// Pack writes the section entry into buf at offset and returns the offset of
// the next entry.
func (s *Section) Pack(buf []byte, offset int) int {
	typeClass := s.Class<<8 | uint32(s.Type)
	binary.LittleEndian.PutUint32(buf[offset:], typeClass)
	binary.LittleEndian.PutUint32(buf[offset+4:], s.Id)
	binary.LittleEndian.PutUint32(buf[offset+8:], s.Length)
	binary.LittleEndian.PutUint32(buf[offset+12:], s.LoadAddress)
	binary.LittleEndian.PutUint32(buf[offset+16:], s.ExpandedLength)

	return offset + SECTION_ENTRY_SIZE
}

// Unpack reads a section entry from buf at offset.  It fails softly: the
// return value reports whether the entry carries a recognized type, letting
// table-scan loops stop at the first unrecognized entry.
func (s *Section) Unpack(buf []byte, offset int) bool {
	typeClass := binary.LittleEndian.Uint32(buf[offset:])
	s.Type = uint8(typeClass & 0xff)
	s.Class = typeClass >> 8
	s.Id = binary.LittleEndian.Uint32(buf[offset+4:])
	s.Length = binary.LittleEndian.Uint32(buf[offset+8:])
	s.LoadAddress = binary.LittleEndian.Uint32(buf[offset+12:])
	s.ExpandedLength = binary.LittleEndian.Uint32(buf[offset+16:])

	return validSectionTypes[s.Type]
}

func (s *Section) Map(offset int) map[string]interface{} {
	return map[string]interface{}{
		"type":            s.Type,
		"_type_name":      SectionTypeName(s.Type),
		"class":           s.Class,
		"id":              s.Id,
		"length":          s.Length,
		"load_address":    s.LoadAddress,
		"expanded_length": s.ExpandedLength,
		"_offset":         offset,
	}
}
