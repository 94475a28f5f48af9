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
	"testing"
)

func dataElement(t *testing.T, id uint32, generation uint32, location uint32,
	size int) Element {

	elt, err := NewElement(ELT_TYPE_DATA, id, generation, location,
		bytes.Repeat([]byte{0xd0}, size))
	if err != nil {
		t.Fatalf("NewElement failed: %s", err.Error())
	}
	return elt
}

func TestElementPackUnpack(t *testing.T) {
	elt := dataElement(t, 7, 3, 0x4000, 100)

	buf := make([]byte, ELT_ENTRY_SIZE)
	if next := elt.Pack(buf, 0); next != ELT_ENTRY_SIZE {
		t.Fatalf("Pack returned %d; want %d", next, ELT_ENTRY_SIZE)
	}

	var elt2 Element
	if !elt2.Unpack(buf, 0) {
		t.Fatalf("Unpack rejected a valid entry")
	}
	if !elt2.SameAs(&elt) {
		t.Fatalf("element changed in round trip")
	}
}

func TestElementCollisionAndAdjacency(t *testing.T) {
	// [0x4000, 0x4fff] and the adjacent [0x5000, ...].
	a := dataElement(t, 1, 1, 0x4000, 0x1000)
	b := dataElement(t, 2, 1, 0x5000, 0x800)

	collision, duplicate := a.ValidateAgainst(&b)
	if collision {
		t.Errorf("adjacent elements reported as colliding")
	}
	if duplicate {
		t.Errorf("distinct elements reported as duplicates")
	}

	// [0x4800, ...] overlaps a.
	c := dataElement(t, 3, 1, 0x4800, 0x1000)
	if collision, _ := a.ValidateAgainst(&c); !collision {
		t.Errorf("overlapping elements not reported")
	}
	if collision, _ := c.ValidateAgainst(&a); !collision {
		t.Errorf("overlap is not symmetric")
	}
}

func TestElementDuplicateKey(t *testing.T) {
	// Same (type, id, generation); different location and length.
	a := dataElement(t, 1, 1, 0x4000, 0x800)
	b := dataElement(t, 1, 1, 0x8000, 0x100)

	if _, duplicate := a.ValidateAgainst(&b); !duplicate {
		t.Fatalf("duplicate (type, id, generation) not reported")
	}

	// End-of-table entries never participate.
	end := NewEndElement()
	if collision, duplicate := a.ValidateAgainst(&end); collision ||
		duplicate {

		t.Fatalf("end-of-table entry flagged")
	}
}

func TestElementValidate(t *testing.T) {
	elt := dataElement(t, 1, 1, 0x4000, 0x800)
	if !elt.Validate(0x1000, 0x200000, 0x800) {
		t.Errorf("valid element rejected")
	}

	// Below the window.
	low := dataElement(t, 1, 1, 0x800, 0x800)
	if low.Validate(0x1000, 0x200000, 0x800) {
		t.Errorf("element below the usable window accepted")
	}

	// Misaligned.
	skew := dataElement(t, 1, 1, 0x4100, 0x800)
	if skew.Validate(0x1000, 0x200000, 0x800) {
		t.Errorf("misaligned element accepted")
	}

	end := NewEndElement()
	if !end.Validate(0x1000, 0x200000, 0x800) {
		t.Errorf("end-of-table entry should always validate")
	}
}

func TestEndElementRejectsPayload(t *testing.T) {
	if _, err := NewElement(ELT_TYPE_END_OF_TABLE, 0, 0, 0,
		[]byte{1}); err == nil {

		t.Fatalf("end-of-table element accepted a payload")
	}
}

func TestEltTypeNames(t *testing.T) {
	typ, err := ParseEltType("s2fw")
	if err != nil || typ != ELT_TYPE_STAGE_2_FW {
		t.Fatalf("ParseEltType(s2fw) = %d, %v", typ, err)
	}
	if _, err := ParseEltType("bogus"); err == nil {
		t.Fatalf("unknown element type accepted")
	}
}
