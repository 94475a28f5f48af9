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

package cli

import (
	"testing"
)

func TestParseU32(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"0", 0},
		{"512", 512},
		{"0x800", 0x800},
		{"0x10000000", 0x10000000},
	}

	for _, c := range cases {
		got, err := parseU32(c.in)
		if err != nil {
			t.Errorf("parseU32(%q) failed: %s", c.in, err.Error())
		} else if got != c.want {
			t.Errorf("parseU32(%q) = %d; want %d", c.in, got, c.want)
		}
	}

	for _, in := range []string{"", "x", "0x100000000", "-1"} {
		if _, err := parseU32(in); err == nil {
			t.Errorf("parseU32(%q) accepted", in)
		}
	}
}

func TestParseKeyValueSpec(t *testing.T) {
	kv, err := parseKeyValueSpec("type=code,file=fw.bin,load=0x1000")
	if err != nil {
		t.Fatalf("parseKeyValueSpec failed: %s", err.Error())
	}
	if kv["type"] != "code" || kv["file"] != "fw.bin" ||
		kv["load"] != "0x1000" {

		t.Errorf("spec decoded wrong: %v", kv)
	}

	if _, err := parseKeyValueSpec("type=code,notafield"); err == nil {
		t.Errorf("malformed spec accepted")
	}
}
