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
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const (
	testCapacity   = 0x200000
	testEraseBlock = 0x800
)

func buildTestRom(t *testing.T) *RomImage {
	r, err := NewRomImage("test flash", testCapacity, testEraseBlock, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewRomImage failed: %s", err.Error())
	}

	if err := r.AddElement(dataElement(t, 1, 1, 0, 5000)); err != nil {
		t.Fatalf("AddElement failed: %s", err.Error())
	}
	if err := r.AddElement(dataElement(t, 2, 1, 0, 1000)); err != nil {
		t.Fatalf("AddElement failed: %s", err.Error())
	}

	if err := r.PostProcess(); err != nil {
		t.Fatalf("PostProcess failed: %s", err.Error())
	}

	return r
}

func TestHeaderBlockSize(t *testing.T) {
	cases := []struct {
		eraseBlockSize uint32
		headerSize     uint32
		want           uint32
	}{
		{256, 512, 512},
		{512, 512, 512},
		{2048, 512, 2048},
		{512, 4096, 4096},
		{256, 2048, 2048},
	}

	for _, c := range cases {
		got := HeaderBlockSize(c.eraseBlockSize, c.headerSize)
		if got != c.want {
			t.Errorf("HeaderBlockSize(%d, %d) = %d; want %d",
				c.eraseBlockSize, c.headerSize, got, c.want)
		}
	}
}

func TestFfffLayoutSizing(t *testing.T) {
	cases := []struct {
		headerSize    uint32
		elementSlots  int
		reservedWords int
		offElements   int
		offTail       int
	}{
		{512, 19, 4, 116, 496},
		{1024, 44, 7, 128, 1008},
		{2048, 95, 8, 132, 2032},
		{4096, 198, 5, 120, 4080},
	}

	// Interleaved construction; sizing must be per instance.
	images := map[uint32]*RomImage{}
	for _, c := range cases {
		r, err := NewRomImage("x", testCapacity, testEraseBlock, 0, 1,
			c.headerSize)
		if err != nil {
			t.Fatalf("NewRomImage(%d) failed: %s", c.headerSize, err.Error())
		}
		images[c.headerSize] = r
	}

	for _, c := range cases {
		h := images[c.headerSize].Headers[0]
		if h.NumElementSlots() != c.elementSlots {
			t.Errorf("%d-byte header has %d element slots; want %d",
				c.headerSize, h.NumElementSlots(), c.elementSlots)
		}
		if len(h.Reserved) != c.reservedWords {
			t.Errorf("%d-byte header has %d reserved words; want %d",
				c.headerSize, len(h.Reserved), c.reservedWords)
		}
		if h.layout.offElements != c.offElements {
			t.Errorf("%d-byte header element table at %d; want %d",
				c.headerSize, h.layout.offElements, c.offElements)
		}
		if h.layout.offTail != c.offTail {
			t.Errorf("%d-byte header tail sentinel at %d; want %d",
				c.headerSize, h.layout.offTail, c.offTail)
		}
	}
}

func TestPostProcessPlacement(t *testing.T) {
	r := buildTestRom(t)
	h := r.Headers[0]

	// First unset element lands at 2 * header block size; the second is
	// rounded up to the next erase block boundary.
	if h.Elements[0].Location != 4096 {
		t.Errorf("element 0 at 0x%x; want 0x1000", h.Elements[0].Location)
	}
	if h.Elements[1].Location != 10240 {
		t.Errorf("element 1 at 0x%x; want 0x2800", h.Elements[1].Location)
	}

	if h.FlashImageLength != 12288 {
		t.Errorf("derived image length = %d; want 12288",
			h.FlashImageLength)
	}
	if r.Length() != 12288 {
		t.Errorf("buffer length = %d; want 12288", r.Length())
	}

	for i, h := range r.Headers {
		if !h.IsGood() {
			t.Errorf("header %d is %s after post-process", i,
				ValidityName(h.Validity()))
		}
	}
}

func TestLayoutOverflow(t *testing.T) {
	// Image length fixed at four erase blocks; the element won't fit.
	r, err := NewRomImage("x", testCapacity, testEraseBlock, 4*testEraseBlock,
		1, 0)
	if err != nil {
		t.Fatalf("NewRomImage failed: %s", err.Error())
	}

	if err := r.AddElement(dataElement(t, 1, 1, 0, 5000)); err != nil {
		t.Fatalf("AddElement failed: %s", err.Error())
	}

	err = r.PostProcess()
	if err == nil {
		t.Fatalf("layout overflow not reported")
	}

	var overflow *LayoutOverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("overflow reported as %T: %s", err, err.Error())
	}
	if overflow.Limit != 4*testEraseBlock {
		t.Errorf("overflow limit = %d; want %d", overflow.Limit,
			4*testEraseBlock)
	}
}

func TestWriteAndReadBack(t *testing.T) {
	r := buildTestRom(t)

	base := filepath.Join(t.TempDir(), "flash")
	outName, err := r.Write(base)
	if err != nil {
		t.Fatalf("Write failed: %s", err.Error())
	}
	if filepath.Ext(outName) != FILE_EXTENSION {
		t.Fatalf("output name %q missing default extension", outName)
	}
	if _, err := os.Stat(outName + ".tmp"); err == nil {
		t.Errorf("staging file left behind after write")
	}

	r2, err := ReadRomImage(base)
	if err != nil {
		t.Fatalf("ReadRomImage failed: %s", err.Error())
	}

	for i, h := range r2.Headers {
		if !h.IsGood() {
			t.Fatalf("reloaded header %d is %s", i,
				ValidityName(h.Validity()))
		}
	}
	if !r2.SameAs() {
		t.Fatalf("reloaded headers differ")
	}

	h := r2.Headers[0]
	if h.FlashImageName != "test flash" ||
		h.FlashCapacity != testCapacity ||
		h.EraseBlockSize != testEraseBlock {

		t.Errorf("flash characteristics changed in round trip")
	}
	if len(h.Elements) != 3 {
		t.Fatalf("%d elements after reload; want 3", len(h.Elements))
	}
	if !h.Elements[0].SameAs(&r.Headers[0].Elements[0]) {
		t.Errorf("element 0 changed in round trip")
	}

	// The element payload actually landed at its assigned location.
	payload := h.Elements[0].Payload()
	if len(payload) != 5000 || payload[0] != 0xd0 {
		t.Errorf("element 0 payload not recovered")
	}
}

func TestSameAs(t *testing.T) {
	r := buildTestRom(t)
	if !r.SameAs() {
		t.Fatalf("identically built headers differ")
	}

	r.Headers[1].Elements[0].Generation++
	if r.SameAs() {
		t.Fatalf("generation change not detected")
	}
}

func TestWriteRefusesInvalidHeader(t *testing.T) {
	r := buildTestRom(t)

	r.Headers[1].Reserved[0] = 1

	base := filepath.Join(t.TempDir(), "flash")
	if _, err := r.Write(base); err == nil {
		t.Fatalf("image with dirty reserved word written")
	}

	if _, err := os.Stat(base + FILE_EXTENSION); err == nil {
		t.Fatalf("refused write still produced a file")
	}
}

func TestErasedClassification(t *testing.T) {
	dir := t.TempDir()

	for _, fill := range []byte{0x00, 0xff} {
		name := filepath.Join(dir, "erased.ffff")
		blob := bytes.Repeat([]byte{fill}, 4096)
		if err := os.WriteFile(name, blob, 0666); err != nil {
			t.Fatalf("WriteFile failed: %s", err.Error())
		}

		r, err := ReadRomImage(name)
		if err != nil {
			t.Fatalf("ReadRomImage failed: %s", err.Error())
		}

		if r.Headers[0].Validity() != FFFF_HDR_ERASED {
			t.Errorf("0x%02x fill classified %s; want erased", fill,
				ValidityName(r.Headers[0].Validity()))
		}
	}
}

func TestReadMalformedFiles(t *testing.T) {
	dir := t.TempDir()

	// A file of junk exactly one minimum header long: the second-header
	// scan has nowhere to land, and every candidate offset runs off the
	// end of the buffer.
	name := filepath.Join(dir, "junk.ffff")
	blob := bytes.Repeat([]byte{0xab}, 512)
	if err := os.WriteFile(name, blob, 0666); err != nil {
		t.Fatalf("WriteFile failed: %s", err.Error())
	}

	r, err := ReadRomImage(name)
	if err != nil {
		t.Fatalf("ReadRomImage failed: %s", err.Error())
	}
	for i, h := range r.Headers {
		if h.Validity() != FFFF_HDR_INVALID {
			t.Errorf("junk header %d classified %s; want invalid", i,
				ValidityName(h.Validity()))
		}
	}

	// A header whose size field claims more room than the file holds must
	// not be read past the end of the file.
	name = filepath.Join(dir, "lying.ffff")
	blob = bytes.Repeat([]byte{0xab}, 600)
	copy(blob, FFFF_SENTINEL)
	binary.LittleEndian.PutUint32(blob[HDR_OFF_HEADER_SIZE:], 4096)
	if err := os.WriteFile(name, blob, 0666); err != nil {
		t.Fatalf("WriteFile failed: %s", err.Error())
	}

	r, err = ReadRomImage(name)
	if err != nil {
		t.Fatalf("ReadRomImage failed: %s", err.Error())
	}
	if r.Headers[0].Validity() != FFFF_HDR_INVALID {
		t.Errorf("oversized header classified %s; want invalid",
			ValidityName(r.Headers[0].Validity()))
	}
}

func TestExplode(t *testing.T) {
	r := buildTestRom(t)

	dir := t.TempDir()
	base := filepath.Join(dir, "flash")
	if _, err := r.Write(base); err != nil {
		t.Fatalf("Write failed: %s", err.Error())
	}

	r2, err := ReadRomImage(base)
	if err != nil {
		t.Fatalf("ReadRomImage failed: %s", err.Error())
	}

	root := filepath.Join(dir, "parts")
	if err := r2.Explode(root); err != nil {
		t.Fatalf("Explode failed: %s", err.Error())
	}

	part := root + "_data_0.bin"
	data, err := os.ReadFile(part)
	if err != nil {
		t.Fatalf("exploded part missing: %s", err.Error())
	}
	if len(data) != 5000 {
		t.Errorf("exploded part is %d bytes; want 5000", len(data))
	}
}
