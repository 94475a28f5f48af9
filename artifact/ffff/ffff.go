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
	"fmt"

	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

const FFFF_SENTINEL = "FlashFormatForFW"

const (
	HEADER_SIZE_MIN     = 512
	HEADER_SIZE_MAX     = 4096
	HEADER_SIZE_DEFAULT = 512
)

const (
	SENTINEL_SIZE         = 16
	TIMESTAMP_SIZE        = 16
	FLASH_IMAGE_NAME_SIZE = 48
	RSVD_WORD_SIZE        = 4
)

// Fixed (non-table) part of the FFFF header:
// sentinel(16) + timestamp(16) + name(48) + flash_capacity(4) +
// erase_block_size(4) + header_size(4) + flash_image_length(4) +
// header_generation_number(4).
const HDR_FIXED_PART_SIZE = 100

// FFFF header field offsets.
const (
	HDR_OFF_SENTINEL          = 0x00
	HDR_OFF_TIMESTAMP         = 0x10
	HDR_OFF_NAME              = 0x20
	HDR_OFF_FLASH_CAPACITY    = 0x50
	HDR_OFF_ERASE_BLOCK_SIZE  = 0x54
	HDR_OFF_HEADER_SIZE       = 0x58
	HDR_OFF_FLASH_IMG_LENGTH  = 0x5c
	HDR_OFF_HEADER_GENERATION = 0x60
	HDR_OFF_RESERVED          = 0x64
)

// The second header's block is found within this bound.
const (
	MAX_HEADER_BLOCK_SIZE   = 64 * 1024
	MAX_HEADER_BLOCK_OFFSET = 512 * 1024
)

const FILE_EXTENSION = ".ffff"

const TIMESTAMP_FORMAT = "20060102 150405"

// FFFF header validity assessments.
const (
	FFFF_HDR_VALID   = 0
	FFFF_HDR_ERASED  = 1
	FFFF_HDR_INVALID = 2
)

var validityNameMap = map[int]string{
	FFFF_HDR_VALID:   "valid",
	FFFF_HDR_ERASED:  "erased",
	FFFF_HDR_INVALID: "invalid",
}

func ValidityName(validity int) string {
	name, ok := validityNameMap[validity]
	if !ok {
		return "?"
	}

	return name
}

// LayoutOverflowError reports a fatal build-time sizing failure: an element's
// assigned flash range would run past the fixed flash image length.  This is
// distinct from a header merely being invalid.
type LayoutOverflowError struct {
	EltType  uint32
	Location uint32
	End      uint32
	Limit    uint32
}

func (e *LayoutOverflowError) Error() string {
	return fmt.Sprintf(
		"%s element at 0x%08x ends at 0x%08x, past the 0x%08x image length",
		EltTypeShortName(e.EltType), e.Location, e.End, e.Limit)
}

// eltLayout holds the table sizing derived from header_size, computed per
// header instance.
type eltLayout struct {
	numElements  int
	reservedSize int
	numReserved  int
	offReserved  int
	offElements  int
	offTail      int
}

func layoutForHeaderSize(headerSize uint32) eltLayout {
	numElements := (int(headerSize) - HDR_FIXED_PART_SIZE -
		SENTINEL_SIZE - 16) / ELT_ENTRY_SIZE
	tableSize := numElements * ELT_ENTRY_SIZE

	reservedSize := int(headerSize) -
		(HDR_FIXED_PART_SIZE + tableSize + SENTINEL_SIZE)

	return eltLayout{
		numElements:  numElements,
		reservedSize: reservedSize,
		numReserved:  reservedSize / RSVD_WORD_SIZE,
		offReserved:  HDR_OFF_RESERVED,
		offElements:  HDR_OFF_RESERVED + reservedSize,
		offTail:      int(headerSize) - SENTINEL_SIZE,
	}
}

func validHeaderSize(headerSize uint32) bool {
	return headerSize >= HEADER_SIZE_MIN && headerSize <= HEADER_SIZE_MAX
}

// HeaderBlockSize returns the size of the flash block holding one FFFF
// header: the smallest power-of-two multiple of the erase block size that
// can contain the header.
func HeaderBlockSize(eraseBlockSize uint32, headerSize uint32) uint32 {
	blockSize := eraseBlockSize
	for blockSize < headerSize && blockSize < MAX_HEADER_BLOCK_SIZE {
		blockSize *= 2
	}
	return blockSize
}

// Header is one FFFF header: a structured view over a span of the shared
// flash buffer.  The two headers of a flash image are independent Header
// values layered over one buffer; only RomImage-level operations may assume
// they agree.
type Header struct {
	Sentinel         string
	TailSentinel     string
	Timestamp        string
	FlashImageName   string
	FlashCapacity    uint32
	EraseBlockSize   uint32
	HeaderSize       uint32
	FlashImageLength uint32
	HeaderGeneration uint32
	Reserved         []uint32
	Elements         []Element

	buf      []byte
	offset   int
	layout   eltLayout
	validity int
}

// newHeader builds a blank header view at the given offset of the flash
// buffer.  The element table starts out holding only the end-of-table entry.
func newHeader(buf []byte, offset int, name string, flashCapacity uint32,
	eraseBlockSize uint32, imageLength uint32, generation uint32,
	headerSize uint32) *Header {

	lay := layoutForHeaderSize(headerSize)
	return &Header{
		FlashImageName:   name,
		FlashCapacity:    flashCapacity,
		EraseBlockSize:   eraseBlockSize,
		HeaderSize:       headerSize,
		FlashImageLength: imageLength,
		HeaderGeneration: generation,
		Reserved:         make([]uint32, lay.numReserved),
		Elements:         []Element{NewEndElement()},
		buf:              buf,
		offset:           offset,
		layout:           lay,
		validity:         FFFF_HDR_INVALID,
	}
}

// parseHeader builds a header view by unpacking the flash buffer at the
// given offset.  Malformed input is not an error here; it is captured in the
// header's validity assessment.
func parseHeader(buf []byte, offset int) *Header {
	h := &Header{
		buf:      buf,
		offset:   offset,
		validity: FFFF_HDR_INVALID,
	}
	h.unpack()
	h.Validate()
	return h
}

// span returns the byte range this header claims.  A header whose size field
// is unusable gets the minimal span so erased/sentinel classification can
// still run; a header probed past the end of the buffer gets an empty one.
func (h *Header) span() []byte {
	if h.offset >= len(h.buf) {
		return nil
	}

	size := int(h.HeaderSize)
	if !validHeaderSize(h.HeaderSize) {
		size = HEADER_SIZE_MIN
	}
	if h.offset+size > len(h.buf) {
		size = len(h.buf) - h.offset
	}
	return h.buf[h.offset : h.offset+size]
}

func (h *Header) unpack() {
	// A buffer too short for even the fixed part can't be read at all;
	// Validate classifies it from the (empty or partial) span.
	if h.offset+HDR_FIXED_PART_SIZE > len(h.buf) {
		return
	}

	buf := h.buf[h.offset:]

	h.Sentinel = string(buf[HDR_OFF_SENTINEL : HDR_OFF_SENTINEL+SENTINEL_SIZE])
	h.Timestamp = cstring(buf[HDR_OFF_TIMESTAMP : HDR_OFF_TIMESTAMP+TIMESTAMP_SIZE])
	h.FlashImageName = cstring(buf[HDR_OFF_NAME : HDR_OFF_NAME+FLASH_IMAGE_NAME_SIZE])
	h.FlashCapacity = binary.LittleEndian.Uint32(buf[HDR_OFF_FLASH_CAPACITY:])
	h.EraseBlockSize = binary.LittleEndian.Uint32(buf[HDR_OFF_ERASE_BLOCK_SIZE:])
	h.HeaderSize = binary.LittleEndian.Uint32(buf[HDR_OFF_HEADER_SIZE:])
	h.FlashImageLength = binary.LittleEndian.Uint32(buf[HDR_OFF_FLASH_IMG_LENGTH:])
	h.HeaderGeneration = binary.LittleEndian.Uint32(buf[HDR_OFF_HEADER_GENERATION:])

	if !validHeaderSize(h.HeaderSize) {
		// Leave the tables empty; Validate classifies the damage.
		return
	}
	if h.offset+int(h.HeaderSize) > len(h.buf) {
		// The size field claims more room than the buffer holds; the
		// tail sentinel stays unread and Validate rejects it.
		return
	}

	// Table sizing is rederived from the on-disk header size before the
	// reserved words and element table can be located.
	h.layout = layoutForHeaderSize(h.HeaderSize)
	h.TailSentinel = string(buf[h.layout.offTail : h.layout.offTail+SENTINEL_SIZE])

	h.Reserved = make([]uint32, h.layout.numReserved)
	for i := range h.Reserved {
		h.Reserved[i] = binary.LittleEndian.Uint32(
			buf[h.layout.offReserved+i*RSVD_WORD_SIZE:])
	}

	h.Elements = nil
	offset := h.layout.offElements
	for i := 0; i < h.layout.numElements; i++ {
		var elt Element
		if !elt.Unpack(buf, offset) {
			break
		}

		h.Elements = append(h.Elements, elt)
		offset += ELT_ENTRY_SIZE

		if elt.IsEnd() {
			break
		}
	}

	for i := range h.Elements {
		h.Elements[i].LoadBlob(h.buf)
	}
}

// Pack flushes the in-memory header fields into its span of the flash
// buffer, tail sentinel included.
func (h *Header) Pack() {
	// A header that never unpacked cleanly has no span to flush into.
	if !validHeaderSize(h.HeaderSize) ||
		h.offset+int(h.HeaderSize) > len(h.buf) {

		return
	}

	buf := h.buf[h.offset:]

	putString(buf, HDR_OFF_SENTINEL, SENTINEL_SIZE, h.Sentinel)
	putString(buf, HDR_OFF_TIMESTAMP, TIMESTAMP_SIZE, h.Timestamp)
	putString(buf, HDR_OFF_NAME, FLASH_IMAGE_NAME_SIZE, h.FlashImageName)
	binary.LittleEndian.PutUint32(buf[HDR_OFF_FLASH_CAPACITY:], h.FlashCapacity)
	binary.LittleEndian.PutUint32(buf[HDR_OFF_ERASE_BLOCK_SIZE:], h.EraseBlockSize)
	binary.LittleEndian.PutUint32(buf[HDR_OFF_HEADER_SIZE:], h.HeaderSize)
	binary.LittleEndian.PutUint32(buf[HDR_OFF_FLASH_IMG_LENGTH:], h.FlashImageLength)
	binary.LittleEndian.PutUint32(buf[HDR_OFF_HEADER_GENERATION:], h.HeaderGeneration)

	for i, rsvd := range h.Reserved {
		binary.LittleEndian.PutUint32(
			buf[h.layout.offReserved+i*RSVD_WORD_SIZE:], rsvd)
	}

	offset := h.layout.offElements
	for i := range h.Elements {
		offset = h.Elements[i].Pack(buf, offset)
	}

	putString(buf, h.layout.offTail, SENTINEL_SIZE, h.TailSentinel)
}

// AddElement inserts a new element just in front of the end-of-table entry.
// Callers go through RomImage.AddElement so both headers stay in step.
func (h *Header) AddElement(elt Element) error {
	if len(h.Elements) >= h.layout.numElements {
		return util.NewBrtError("Element table full")
	}

	eot := len(h.Elements) - 1
	h.Elements = append(h.Elements[:eot],
		append([]Element{elt}, h.Elements[eot:]...)...)

	return nil
}

// HeaderBlockSize returns the size of this header's flash block.
func (h *Header) HeaderBlockSize() uint32 {
	return HeaderBlockSize(h.EraseBlockSize, h.HeaderSize)
}

// Validate classifies the header as VALID, ERASED or INVALID.  The checks
// run in a fixed order and stop at the first structural failure.
func (h *Header) Validate() int {
	span := h.span()

	// A span too short for a minimal header can't be a header of any kind.
	if len(span) < HEADER_SIZE_MIN {
		h.validity = FFFF_HDR_INVALID
		return h.validity
	}

	// Erased flash classifies before anything is interpreted.
	if util.IsConstantFill(span, 0x00) || util.IsConstantFill(span, 0xff) {
		h.validity = FFFF_HDR_ERASED
		return h.validity
	}

	if h.Sentinel != FFFF_SENTINEL || h.TailSentinel != FFFF_SENTINEL {
		h.validity = FFFF_HDR_INVALID
		return h.validity
	}

	if !validHeaderSize(h.HeaderSize) {
		h.validity = FFFF_HDR_INVALID
		return h.validity
	}

	if !util.IsPowerOf2(h.EraseBlockSize) {
		h.validity = FFFF_HDR_INVALID
		return h.validity
	}

	if h.FlashImageLength%h.EraseBlockSize != 0 {
		h.validity = FFFF_HDR_INVALID
		return h.validity
	}

	for _, rsvd := range h.Reserved {
		if rsvd != 0 {
			h.validity = FFFF_HDR_INVALID
			return h.validity
		}
	}

	// The element table tail, between the end-of-table entry and the tail
	// sentinel, must still be in its zero-filled build state.
	unusedStart := h.layout.offElements + len(h.Elements)*ELT_ENTRY_SIZE
	if !util.IsConstantFill(span[unusedStart:h.layout.offTail], 0x00) {
		h.validity = FFFF_HDR_INVALID
		return h.validity
	}

	if !h.ValidateElementTable() {
		h.validity = FFFF_HDR_INVALID
		return h.validity
	}

	h.validity = FFFF_HDR_VALID
	return h.validity
}

// ValidateElementTable checks every element individually and pairwise.  All
// defects are reported before the verdict is returned.
func (h *Header) ValidateElementTable() bool {
	ok := true

	// Elements may not land on either header block.
	rangeLow := 2 * h.HeaderBlockSize()
	rangeHigh := h.FlashCapacity

	if len(h.Elements) == 0 ||
		!h.Elements[len(h.Elements)-1].IsEnd() {

		util.ErrorMessage(util.VERBOSITY_QUIET,
			"Error: element table is not terminated\n")
		return false
	}

	for i := range h.Elements {
		a := &h.Elements[i]
		if !a.Validate(rangeLow, rangeHigh, h.EraseBlockSize) {
			ok = false
		}

		for j := i + 1; j < len(h.Elements); j++ {
			b := &h.Elements[j]
			collision, duplicate := a.ValidateAgainst(b)
			if collision {
				util.ErrorMessage(util.VERBOSITY_QUIET,
					"Error: elements %d and %d overlap\n", i, j)
				ok = false
			}
			if duplicate {
				util.ErrorMessage(util.VERBOSITY_QUIET,
					"Error: elements %d and %d share (type, id, "+
						"generation)\n", i, j)
				ok = false
			}
		}
	}

	return ok
}

// PostProcess assigns flash locations to elements that lack one, derives the
// flash image length if it is unset, stamps the sentinels and timestamp,
// packs the header and revalidates.  The timestamp is supplied by the caller
// so paired headers end up byte-identical.
func (h *Header) PostProcess(timestamp string) error {
	cursor := 2 * h.HeaderBlockSize()

	for i := range h.Elements {
		elt := &h.Elements[i]
		if elt.IsEnd() {
			break
		}

		if elt.Location == 0 {
			elt.Location = util.NextBoundary(cursor, h.EraseBlockSize)
		}

		end := elt.Location + elt.Length
		if h.FlashImageLength != 0 && end >= h.FlashImageLength {
			return &LayoutOverflowError{
				EltType:  elt.Type,
				Location: elt.Location,
				End:      end,
				Limit:    h.FlashImageLength,
			}
		}

		cursor = end
	}

	if h.FlashImageLength == 0 {
		h.FlashImageLength = util.NextBoundary(cursor, h.EraseBlockSize)
	}

	h.Sentinel = FFFF_SENTINEL
	h.TailSentinel = FFFF_SENTINEL
	if h.Timestamp == "" {
		h.Timestamp = timestamp
	}
	if len(h.FlashImageName) > FLASH_IMAGE_NAME_SIZE {
		h.FlashImageName = h.FlashImageName[:FLASH_IMAGE_NAME_SIZE]
	}

	h.Pack()
	h.Validate()

	return nil
}

// SameAs indicates whether two headers describe the same logical flash
// layout, fixed fields and element tables both.
func (h *Header) SameAs(other *Header) bool {
	if h.FlashImageName != other.FlashImageName ||
		h.FlashCapacity != other.FlashCapacity ||
		h.EraseBlockSize != other.EraseBlockSize ||
		h.HeaderSize != other.HeaderSize ||
		h.FlashImageLength != other.FlashImageLength ||
		h.HeaderGeneration != other.HeaderGeneration {

		return false
	}

	if len(h.Elements) != len(other.Elements) {
		return false
	}
	for i := range h.Elements {
		if !h.Elements[i].SameAs(&other.Elements[i]) {
			return false
		}
	}

	return true
}

func (h *Header) Validity() int {
	return h.validity
}

func (h *Header) IsGood() bool {
	return h.validity == FFFF_HDR_VALID
}

// NumElementSlots returns the element table capacity for this header's size,
// the end-of-table entry included.
func (h *Header) NumElementSlots() int {
	return h.layout.numElements
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
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
