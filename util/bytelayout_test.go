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

package util

import (
	"bytes"
	"testing"
)

func TestIsPowerOf2(t *testing.T) {
	for _, x := range []uint32{1, 2, 4, 2048, 1 << 31} {
		if !IsPowerOf2(x) {
			t.Errorf("IsPowerOf2(%d) = false; want true", x)
		}
	}
	for _, x := range []uint32{0, 3, 6, 2047, 1<<31 + 1} {
		if IsPowerOf2(x) {
			t.Errorf("IsPowerOf2(%d) = true; want false", x)
		}
	}
}

func TestNextBoundary(t *testing.T) {
	cases := []struct {
		location  uint32
		blockSize uint32
		want      uint32
	}{
		{0, 2048, 0},
		{1, 2048, 2048},
		{2048, 2048, 2048},
		{2049, 2048, 4096},
		{9096, 2048, 10240},
	}

	for _, c := range cases {
		got := NextBoundary(c.location, c.blockSize)
		if got != c.want {
			t.Errorf("NextBoundary(%d, %d) = %d; want %d",
				c.location, c.blockSize, got, c.want)
		}
	}
}

func TestBlockAligned(t *testing.T) {
	if !BlockAligned(4096, 2048) {
		t.Errorf("4096 should be aligned to 2048")
	}
	if BlockAligned(4097, 2048) {
		t.Errorf("4097 should not be aligned to 2048")
	}
}

func TestIsConstantFill(t *testing.T) {
	if !IsConstantFill(bytes.Repeat([]byte{0xff}, 512), 0xff) {
		t.Errorf("all-0xff buffer should match 0xff fill")
	}
	if !IsConstantFill(nil, 0x00) {
		t.Errorf("empty buffer should match any fill")
	}

	b := make([]byte, 512)
	b[511] = 1
	if IsConstantFill(b, 0x00) {
		t.Errorf("buffer with one non-zero byte should not match")
	}
}

func TestHexDumpLines(t *testing.T) {
	short := make([]byte, 96)
	lines := HexDumpLines(short, false, "")
	if len(lines) != 3 {
		t.Fatalf("96-byte dump has %d lines; want 3", len(lines))
	}

	long := make([]byte, 100)
	lines = HexDumpLines(long, false, "  ")
	if len(lines) != 3 {
		t.Fatalf("abbreviated dump has %d lines; want 3", len(lines))
	}
	if lines[1] != "    :" {
		t.Errorf("abbreviated dump spacer = %q", lines[1])
	}

	lines = HexDumpLines(long, true, "")
	if len(lines) != 4 {
		t.Errorf("full 100-byte dump has %d lines; want 4", len(lines))
	}
}
