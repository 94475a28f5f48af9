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
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

const TFTF_SENTINEL = "TFTF"

const (
	HEADER_SIZE_MIN     = 512
	HEADER_SIZE_MAX     = 4096
	HEADER_SIZE_DEFAULT = 512
)

const (
	SENTINEL_SIZE    = 4
	TIMESTAMP_SIZE   = 16
	FW_PKG_NAME_SIZE = 48
	RSVD_WORD_SIZE   = 4
)

// Fixed (non-table) part of the TFTF header:
// sentinel(4) + header_size(4) + timestamp(16) + name(48) +
// package_type(4) + start_location(4) + unipro_mfg_id(4) +
// unipro_pid(4) + ara_vid(4) + ara_pid(4).
const HDR_FIXED_PART_SIZE = 96

// At least four reserved words must survive the section table.
const HDR_MIN_RESERVED_SIZE = 16

// TFTF header field offsets.
const (
	HDR_OFF_SENTINEL       = 0x00
	HDR_OFF_HEADER_SIZE    = 0x04
	HDR_OFF_TIMESTAMP      = 0x08
	HDR_OFF_NAME           = 0x18
	HDR_OFF_PACKAGE_TYPE   = 0x48
	HDR_OFF_START_LOCATION = 0x4c
	HDR_OFF_UNIPRO_MFG_ID  = 0x50
	HDR_OFF_UNIPRO_PID     = 0x54
	HDR_OFF_ARA_VID        = 0x58
	HDR_OFF_ARA_PID        = 0x5c
	HDR_OFF_RESERVED       = 0x60
)

const FILE_EXTENSION = ".bin"

const TIMESTAMP_FORMAT = "20060102 150405"

// TFTF validity assessments.
const (
	TFTF_VALID                 = 0
	TFTF_INVALID               = 1
	TFTF_VALID_WITH_COLLISIONS = 2
)

// layout holds the table sizing derived from header_size.  It is computed
// per instance; two TFTF images with different header sizes never share
// layout state.
type layout struct {
	numSections  int
	reservedSize int
	numReserved  int
	offReserved  int
	offSections  int
}

func layoutForHeaderSize(headerSize uint32) layout {
	numSections := (int(headerSize) - HDR_FIXED_PART_SIZE -
		HDR_MIN_RESERVED_SIZE) / SECTION_ENTRY_SIZE
	tableSize := numSections * SECTION_ENTRY_SIZE

	// The reserved array is made up of what's left over after carving out
	// the section table.
	reservedSize := int(headerSize) - HDR_FIXED_PART_SIZE - tableSize

	return layout{
		numSections:  numSections,
		reservedSize: reservedSize,
		numReserved:  reservedSize / RSVD_WORD_SIZE,
		offReserved:  HDR_OFF_RESERVED,
		offSections:  HDR_OFF_RESERVED + reservedSize,
	}
}

func validHeaderSize(headerSize uint32) bool {
	return headerSize >= HEADER_SIZE_MIN && headerSize <= HEADER_SIZE_MAX
}

// Tftf is a complete firmware blob: header, section table and the
// concatenated section payloads that follow the header.
type Tftf struct {
	Sentinel            string
	HeaderSize          uint32
	Timestamp           string
	FirmwarePackageName string
	PackageType         uint32
	StartLocation       uint32
	UniproMfgId         uint32
	UniproPid           uint32
	AraVid              uint32
	AraPid              uint32
	Reserved            []uint32
	Sections            []Section

	buf             []byte
	length          int
	layout          layout
	collisions      [][]int
	collisionsFound bool
	validity        int
}

// New creates a blank TFTF with the given header size (0 selects the
// default).  The section table starts out holding only the end-of-table
// marker.
func New(headerSize uint32) (*Tftf, error) {
	if headerSize == 0 {
		headerSize = HEADER_SIZE_DEFAULT
	}
	if !validHeaderSize(headerSize) {
		return nil, util.FmtBrtError(
			"TFTF header size %d is out of range [%d, %d]",
			headerSize, HEADER_SIZE_MIN, HEADER_SIZE_MAX)
	}

	lay := layoutForHeaderSize(headerSize)
	t := &Tftf{
		HeaderSize: headerSize,
		Reserved:   make([]uint32, lay.numReserved),
		Sections: []Section{
			NewSection(SECTION_TYPE_END_OF_DESCRIPTORS, 0, 0, 0, 0, 0),
		},
		buf:      make([]byte, headerSize),
		length:   int(headerSize),
		layout:   lay,
		validity: TFTF_INVALID,
	}

	return t, nil
}

// Parse unpacks a TFTF blob from a buffer.  The buffer becomes the image's
// backing store.
func Parse(data []byte) (*Tftf, error) {
	t := &Tftf{
		buf:      data,
		length:   len(data),
		validity: TFTF_INVALID,
	}

	if err := t.unpack(); err != nil {
		return nil, err
	}

	return t, nil
}

// Read loads a TFTF file into memory and parses it.  If filename cannot be
// opened, filename plus the default extension is tried.
func Read(filename string) (*Tftf, error) {
	names := []string{filename, filename + FILE_EXTENSION}

	var data []byte
	var err error
	for _, name := range names {
		data, err = os.ReadFile(name)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, util.FmtBrtError("Can't find TFTF file \"%s\"", filename)
	}

	return Parse(data)
}

func (t *Tftf) unpack() error {
	if len(t.buf) < HEADER_SIZE_MIN {
		return util.FmtBrtError(
			"TFTF buffer too small for a header; size=%d", len(t.buf))
	}

	t.Sentinel = string(t.buf[HDR_OFF_SENTINEL : HDR_OFF_SENTINEL+SENTINEL_SIZE])
	t.HeaderSize = binary.LittleEndian.Uint32(t.buf[HDR_OFF_HEADER_SIZE:])
	t.Timestamp = cstring(t.buf[HDR_OFF_TIMESTAMP : HDR_OFF_TIMESTAMP+TIMESTAMP_SIZE])
	t.FirmwarePackageName = cstring(t.buf[HDR_OFF_NAME : HDR_OFF_NAME+FW_PKG_NAME_SIZE])
	t.PackageType = binary.LittleEndian.Uint32(t.buf[HDR_OFF_PACKAGE_TYPE:])
	t.StartLocation = binary.LittleEndian.Uint32(t.buf[HDR_OFF_START_LOCATION:])
	t.UniproMfgId = binary.LittleEndian.Uint32(t.buf[HDR_OFF_UNIPRO_MFG_ID:])
	t.UniproPid = binary.LittleEndian.Uint32(t.buf[HDR_OFF_UNIPRO_PID:])
	t.AraVid = binary.LittleEndian.Uint32(t.buf[HDR_OFF_ARA_VID:])
	t.AraPid = binary.LittleEndian.Uint32(t.buf[HDR_OFF_ARA_PID:])

	if !validHeaderSize(t.HeaderSize) {
		t.validity = TFTF_INVALID
		return util.FmtBrtError(
			"TFTF header size %d is out of range [%d, %d]",
			t.HeaderSize, HEADER_SIZE_MIN, HEADER_SIZE_MAX)
	}
	if int(t.HeaderSize) > len(t.buf) {
		t.validity = TFTF_INVALID
		return util.FmtBrtError(
			"TFTF buffer (%d bytes) shorter than its header size (%d)",
			len(t.buf), t.HeaderSize)
	}

	// The imported header size may differ from the default, so the table
	// sizing must be rederived before the reserved words and section table
	// can be located.
	t.layout = layoutForHeaderSize(t.HeaderSize)

	t.Reserved = make([]uint32, t.layout.numReserved)
	for i := range t.Reserved {
		t.Reserved[i] = binary.LittleEndian.Uint32(
			t.buf[t.layout.offReserved+i*RSVD_WORD_SIZE:])
	}

	t.Sections = nil
	offset := t.layout.offSections
	for i := 0; i < t.layout.numSections; i++ {
		var section Section
		if !section.Unpack(t.buf, offset) {
			log.Debugf("invalid section type 0x%02x at [%d]",
				section.Type, i)
			break
		}

		t.Sections = append(t.Sections, section)
		offset += SECTION_ENTRY_SIZE

		if section.IsEnd() {
			break
		}
	}

	t.SniffTest()
	return nil
}

// Pack flushes the in-memory header fields into the backing buffer.
func (t *Tftf) Pack() {
	putString(t.buf, HDR_OFF_SENTINEL, SENTINEL_SIZE, t.Sentinel)
	binary.LittleEndian.PutUint32(t.buf[HDR_OFF_HEADER_SIZE:], t.HeaderSize)
	putString(t.buf, HDR_OFF_TIMESTAMP, TIMESTAMP_SIZE, t.Timestamp)
	putString(t.buf, HDR_OFF_NAME, FW_PKG_NAME_SIZE, t.FirmwarePackageName)
	binary.LittleEndian.PutUint32(t.buf[HDR_OFF_PACKAGE_TYPE:], t.PackageType)
	binary.LittleEndian.PutUint32(t.buf[HDR_OFF_START_LOCATION:], t.StartLocation)
	binary.LittleEndian.PutUint32(t.buf[HDR_OFF_UNIPRO_MFG_ID:], t.UniproMfgId)
	binary.LittleEndian.PutUint32(t.buf[HDR_OFF_UNIPRO_PID:], t.UniproPid)
	binary.LittleEndian.PutUint32(t.buf[HDR_OFF_ARA_VID:], t.AraVid)
	binary.LittleEndian.PutUint32(t.buf[HDR_OFF_ARA_PID:], t.AraPid)

	for i, rsvd := range t.Reserved {
		binary.LittleEndian.PutUint32(
			t.buf[t.layout.offReserved+i*RSVD_WORD_SIZE:], rsvd)
	}

	offset := t.layout.offSections
	for i := range t.Sections {
		offset = t.Sections[i].Pack(t.buf, offset)
	}
}

// AddSection inserts a new section just in front of the end-of-table marker
// and appends its payload to the blob.  The payload must already be in final
// (e.g. signed) form.
func (t *Tftf) AddSection(sectionType uint8, class uint32, id uint32,
	data []byte, loadAddress uint32) error {

	if len(t.Sections) >= t.layout.numSections {
		return util.NewBrtError("Section table full")
	}

	section := NewSection(sectionType, class, id, uint32(len(data)),
		loadAddress, uint32(len(data)))

	// The new section goes immediately before the end-of-table marker; its
	// payload lands at the tail of the blob.  Packing is deferred until
	// Write or an explicit Pack.
	eot := len(t.Sections) - 1
	t.Sections = append(t.Sections[:eot],
		append([]Section{section}, t.Sections[eot:]...)...)

	t.buf = append(t.buf, data...)
	t.length = len(t.buf)

	return nil
}

// AddSectionFromFile inserts a new section whose payload is read from the
// named file.
func (t *Tftf) AddSectionFromFile(sectionType uint8, class uint32, id uint32,
	filename string, loadAddress uint32) error {

	data, err := os.ReadFile(filename)
	if err != nil {
		return util.FmtBrtError("Unable to read \"%s\": %s",
			filename, err.Error())
	}

	return t.AddSection(sectionType, class, id, data, loadAddress)
}

// CheckForCollisions scans the section table for overlapping load ranges.
// Sections from the first signature onward are outside collision accounting;
// they are appended after signing and carry no real load address.
func (t *Tftf) CheckForCollisions() bool {
	t.collisions = nil
	t.collisionsFound = false

	for i, a := range t.Sections {
		if a.Type == SECTION_TYPE_SIGNATURE || a.IsEnd() {
			break
		}

		var collision []int
		startA := a.LoadAddress
		endA := startA + a.ExpandedLength - 1
		for j, b := range t.Sections {
			if i == j {
				continue
			}
			if b.Type == SECTION_TYPE_SIGNATURE || b.IsEnd() {
				break
			}

			startB := b.LoadAddress
			endB := startB + b.ExpandedLength - 1
			if endB >= startA && startB <= endA {
				t.collisionsFound = true
				collision = append(collision, j)
			}
		}
		t.collisions = append(t.collisions, collision)
	}

	return t.collisionsFound
}

// SniffTest performs a quick validity check of the TFTF header, generally
// done when importing an existing TFTF file.
func (t *Tftf) SniffTest() int {
	t.validity = TFTF_VALID

	if t.Sentinel != TFTF_SENTINEL {
		t.validity = TFTF_INVALID
	} else if t.CheckForCollisions() {
		t.validity = TFTF_VALID_WITH_COLLISIONS
	}

	return t.validity
}

// IsGood is the go/no-go decision on a TFTF header.  An image with
// collisions is flagged but still writable.
func (t *Tftf) IsGood() bool {
	return t.validity != TFTF_INVALID
}

// PostProcess finalizes a built-up TFTF: stamps the sentinel and timestamp,
// trims the package name and recomputes validity.
func (t *Tftf) PostProcess() {
	t.Sentinel = TFTF_SENTINEL
	t.CheckForCollisions()

	if t.Timestamp == "" {
		t.Timestamp = time.Now().UTC().Format(TIMESTAMP_FORMAT)
	}

	if len(t.FirmwarePackageName) > FW_PKG_NAME_SIZE {
		t.FirmwarePackageName = t.FirmwarePackageName[:FW_PKG_NAME_SIZE]
	}

	t.SniffTest()
}

// Write packs the image and writes the whole blob to a file, appending the
// default extension if the name has none.  The final filename is returned.
func (t *Tftf) Write(outFilename string) (string, error) {
	t.Pack()
	t.length = len(t.buf)

	if filepath.Ext(outFilename) == "" {
		outFilename += FILE_EXTENSION
	}

	// Stage next to the destination so a failure never leaves a partial
	// image behind.
	tmpName := outFilename + ".tmp"
	if err := os.WriteFile(tmpName, t.buf, 0666); err != nil {
		return "", util.FmtBrtError("Unable to write \"%s\": %s",
			tmpName, err.Error())
	}
	if err := util.MoveFile(tmpName, outFilename); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	info, err := os.Stat(outFilename)
	if err != nil {
		return "", util.ChildBrtError(err)
	}
	if info.Size() != int64(t.length) {
		return "", util.FmtBrtError("\"%s\" has wrong length", outFilename)
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT, "Wrote %s\n", outFilename)
	return outFilename, nil
}

// FindFirstSection returns the index of the first section of the given type,
// or the index of the end-of-table marker if there is none.  Typically used
// to locate the insertion point for a signature or certificate section.
func (t *Tftf) FindFirstSection(sectionType uint8) int {
	for i, section := range t.Sections {
		if section.Type == sectionType || section.IsEnd() {
			return i
		}
	}
	return len(t.Sections)
}

// HeaderUpToSection returns the header bytes preceding the given section
// table entry.  The header is packed first so the slice reflects current
// state.  This is the first part of the blob fed to a signing algorithm.
func (t *Tftf) HeaderUpToSection(index int) ([]byte, error) {
	if index > len(t.Sections) {
		return nil, util.FmtBrtError(
			"Section index %d out of range", index)
	}

	t.Pack()
	end := t.layout.offSections + index*SECTION_ENTRY_SIZE
	return t.buf[:end], nil
}

// SectionDataUpToSection returns the payload bytes of all sections preceding
// the given index.  This is the second part of the blob fed to a signing
// algorithm.
func (t *Tftf) SectionDataUpToSection(index int) ([]byte, error) {
	if index > len(t.Sections) {
		return nil, util.FmtBrtError(
			"Section index %d out of range", index)
	}

	t.Pack()
	end := int(t.HeaderSize)
	for i, section := range t.Sections {
		if i >= index {
			break
		}
		end += int(section.Length)
	}
	if end > len(t.buf) {
		return nil, util.FmtBrtError(
			"Section table claims %d payload bytes; blob holds %d",
			end-int(t.HeaderSize), len(t.buf)-int(t.HeaderSize))
	}
	return t.buf[int(t.HeaderSize):end], nil
}

// SectionPayload returns the payload bytes of the section at the given
// index.
func (t *Tftf) SectionPayload(index int) ([]byte, error) {
	if index >= len(t.Sections) || t.Sections[index].IsEnd() {
		return nil, util.FmtBrtError(
			"Section index %d out of range", index)
	}

	start := int(t.HeaderSize)
	for i := 0; i < index; i++ {
		start += int(t.Sections[i].Length)
	}
	end := start + int(t.Sections[index].Length)
	if end > len(t.buf) {
		return nil, util.FmtBrtError(
			"Section %d payload extends beyond the blob", index)
	}

	return t.buf[start:end], nil
}

// Length returns the byte length of the entire blob, header included.  This
// is longer than the header's countable load length.
func (t *Tftf) Length() int {
	return t.length
}

// Bytes packs the image and returns the backing buffer.
func (t *Tftf) Bytes() []byte {
	t.Pack()
	return t.buf
}

func (t *Tftf) Validity() int {
	return t.validity
}

func (t *Tftf) Collisions() [][]int {
	return t.collisions
}

// NumSectionSlots returns the section table capacity for this image's
// header size.
func (t *Tftf) NumSectionSlots() int {
	return t.layout.numSections
}

func (t *Tftf) NumReservedWords() int {
	return t.layout.numReserved
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i != -1 {
		b = b[:i]
	}
	return string(b)
}

// putString zero-fills a fixed-width field and copies s into it, truncating
// if necessary.
func putString(buf []byte, offset int, size int, s string) {
	field := buf[offset : offset+size]
	for i := range field {
		field[i] = 0
	}
	copy(field, s)
}
