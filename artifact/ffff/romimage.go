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
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

// RomImage is a whole flash image: one shared buffer carrying two FFFF
// header views, the primary at offset 0 and a redundant copy one header
// block in.  Mutations that change element content go through RomImage so
// they land on both headers; nothing else keeps the pair in sync.
type RomImage struct {
	Headers [2]*Header

	buf []byte
}

// NewRomImage builds a blank flash image from its characteristics.  An
// imageLength of 0 defers sizing to PostProcess; a headerSize of 0 selects
// the default.
func NewRomImage(name string, flashCapacity uint32, eraseBlockSize uint32,
	imageLength uint32, generation uint32,
	headerSize uint32) (*RomImage, error) {

	if headerSize == 0 {
		headerSize = HEADER_SIZE_DEFAULT
	}
	if !validHeaderSize(headerSize) {
		return nil, util.FmtBrtError(
			"FFFF header size %d is out of range [%d, %d]",
			headerSize, HEADER_SIZE_MIN, HEADER_SIZE_MAX)
	}
	if !util.IsPowerOf2(eraseBlockSize) {
		return nil, util.FmtBrtError(
			"Erase block size 0x%x is not a power of 2", eraseBlockSize)
	}
	if imageLength%eraseBlockSize != 0 {
		return nil, util.FmtBrtError(
			"Image length 0x%x is not a multiple of the 0x%x erase block",
			imageLength, eraseBlockSize)
	}
	if imageLength > flashCapacity {
		return nil, util.FmtBrtError(
			"Image length 0x%x exceeds the 0x%x flash capacity",
			imageLength, flashCapacity)
	}

	// With the final length still unknown the buffer is provisioned at
	// full capacity and trimmed during PostProcess.
	allocation := imageLength
	if allocation == 0 {
		allocation = flashCapacity
	}

	hbs := HeaderBlockSize(eraseBlockSize, headerSize)
	if 2*hbs > allocation {
		return nil, util.FmtBrtError(
			"Flash too small for two 0x%x header blocks", hbs)
	}

	r := &RomImage{
		buf: make([]byte, allocation),
	}
	r.Headers[0] = newHeader(r.buf, 0, name, flashCapacity, eraseBlockSize,
		imageLength, generation, headerSize)
	r.Headers[1] = newHeader(r.buf, int(hbs), name, flashCapacity,
		eraseBlockSize, imageLength, generation, headerSize)

	return r, nil
}

// ReadRomImage loads a flash image file and parses both headers.  The
// primary header supplies the flash characteristics; the redundant header is
// found by scanning doubling offsets for a matching sentinel pair, since the
// image may have been built with different parameters.
func ReadRomImage(filename string) (*RomImage, error) {
	names := []string{filename, filename + FILE_EXTENSION}

	var buf []byte
	var err error
	for _, name := range names {
		buf, err = os.ReadFile(name)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, util.FmtBrtError("Can't find FFFF file \"%s\"", filename)
	}
	if len(buf) < HEADER_SIZE_MIN {
		return nil, util.FmtBrtError(
			"\"%s\" is too short to hold an FFFF header", filename)
	}

	r := &RomImage{buf: buf}
	r.Headers[0] = parseHeader(buf, 0)

	offset := r.findSecondHeader()
	r.Headers[1] = parseHeader(buf, offset)

	return r, nil
}

// findSecondHeader locates the redundant header by probing doubling offsets
// for a nose+tail sentinel pair.  Falls back to the canonical offset when no
// candidate matches, leaving classification to the header's own validation.
func (r *RomImage) findSecondHeader() int {
	start := HEADER_SIZE_MIN
	h0 := r.Headers[0]
	if h0.IsGood() {
		start = int(h0.HeaderBlockSize())
	}

	for offset := start; offset <= MAX_HEADER_BLOCK_OFFSET; offset *= 2 {
		if offset+HEADER_SIZE_MIN > len(r.buf) {
			break
		}
		if string(r.buf[offset:offset+SENTINEL_SIZE]) != FFFF_SENTINEL {
			continue
		}

		headerSize := binary.LittleEndian.Uint32(
			r.buf[offset+HDR_OFF_HEADER_SIZE:])
		if !validHeaderSize(headerSize) ||
			offset+int(headerSize) > len(r.buf) {

			continue
		}

		tailOff := offset + int(headerSize) - SENTINEL_SIZE
		if string(r.buf[tailOff:tailOff+SENTINEL_SIZE]) == FFFF_SENTINEL {
			return offset
		}
	}

	log.Debugf("no second FFFF header found; assuming offset 0x%x", start)
	return start
}

// AddElement appends an element to both header tables.  Elements must be
// added here, never on one header alone.
func (r *RomImage) AddElement(elt Element) error {
	for _, h := range r.Headers {
		if err := h.AddElement(elt); err != nil {
			return err
		}
	}

	return nil
}

// AddElementFromFile appends an element read from a file to both header
// tables.
func (r *RomImage) AddElementFromFile(eltType uint32, id uint32,
	generation uint32, location uint32, filename string) error {

	elt, err := NewElementFromFile(eltType, id, generation, location,
		filename)
	if err != nil {
		return err
	}

	return r.AddElement(elt)
}

// PostProcess finalizes the image: both headers assign element locations and
// stamp themselves with one shared timestamp, the element payloads are
// copied into the flash buffer, and the buffer is trimmed to the final image
// length.
func (r *RomImage) PostProcess() error {
	timestamp := time.Now().UTC().Format(TIMESTAMP_FORMAT)

	for _, h := range r.Headers {
		if err := h.PostProcess(timestamp); err != nil {
			return err
		}
	}

	// Payloads are written once; both headers assigned identical layouts
	// from identical tables.
	h0 := r.Headers[0]
	for i := range h0.Elements {
		elt := &h0.Elements[i]
		if elt.IsEnd() {
			break
		}
		if elt.Payload() == nil {
			return util.FmtBrtError(
				"Element %d has no payload to place", i)
		}
		copy(r.buf[elt.Location:], elt.Payload())
	}

	if int(h0.FlashImageLength) < len(r.buf) {
		r.buf = r.buf[:h0.FlashImageLength]
		for _, h := range r.Headers {
			h.buf = r.buf
		}
	}

	// The payload copies may have clobbered nothing, but revalidate with
	// the final buffer anyway.
	for _, h := range r.Headers {
		h.Validate()
	}

	return nil
}

// SameAs indicates whether the two headers describe one logical flash
// layout.
func (r *RomImage) SameAs() bool {
	return r.Headers[0].SameAs(r.Headers[1])
}

// Write packs both headers and writes the flash image to a file, appending
// the default extension if the name has none.  It refuses to write unless
// both headers independently validate.
func (r *RomImage) Write(outFilename string) (string, error) {
	for i, h := range r.Headers {
		h.Pack()
		if h.Validate() != FFFF_HDR_VALID {
			return "", util.FmtBrtError(
				"FFFF header %d is %s; refusing to write",
				i, ValidityName(h.Validity()))
		}
	}

	if filepath.Ext(outFilename) == "" {
		outFilename += FILE_EXTENSION
	}

	// Stage next to the destination so a failure never leaves a partial
	// image behind.
	tmpName := outFilename + ".tmp"
	if err := os.WriteFile(tmpName, r.buf, 0666); err != nil {
		return "", util.FmtBrtError("Unable to write \"%s\": %s",
			tmpName, err.Error())
	}
	if err := util.MoveFile(tmpName, outFilename); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT, "Wrote %s\n", outFilename)
	return outFilename, nil
}

// Explode dumps every element payload to its own file next to rootName.
// When the two headers disagree, each header's elements are dumped with a
// distinguishing suffix.
func (r *RomImage) Explode(rootName string) error {
	if r.SameAs() {
		return r.explodeHeader(r.Headers[0], rootName)
	}

	for i, h := range r.Headers {
		if err := r.explodeHeader(h,
			fmt.Sprintf("%s_%d", rootName, i)); err != nil {

			return err
		}
	}

	return nil
}

func (r *RomImage) explodeHeader(h *Header, rootName string) error {
	for i := range h.Elements {
		elt := &h.Elements[i]
		if elt.IsEnd() {
			break
		}

		name := fmt.Sprintf("%s_%s_%d%s", rootName,
			EltTypeShortName(elt.Type), i, ".bin")
		if err := elt.Write(name); err != nil {
			return err
		}
	}

	return nil
}

// Length returns the flash image length in bytes.
func (r *RomImage) Length() int {
	return len(r.buf)
}

// Bytes packs both headers and returns the backing buffer.
func (r *RomImage) Bytes() []byte {
	for _, h := range r.Headers {
		h.Pack()
	}
	return r.buf
}
