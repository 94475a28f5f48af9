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

package plan

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/MotorolaMobilityLLC/bootrom-tools/artifact/ffff"
)

const testPlan = `{
    "name": "testflash",
    "flash_capacity": 2097152,
    "erase_block_size": 2048,
    "generation": 1,
    "elements": [
        { "type": "data", "id": 1, "generation": 1, "file": "boot.bin" },
        { "type": "data", "id": 2, "generation": 1, "file": "cfg.bin" }
    ]
}`

func writeTestPlan(t *testing.T) string {
	dir := t.TempDir()

	files := map[string]int{"boot.bin": 5000, "cfg.bin": 1000}
	for name, size := range files {
		blob := bytes.Repeat([]byte{0xd0}, size)
		if err := os.WriteFile(filepath.Join(dir, name), blob,
			0666); err != nil {

			t.Fatalf("WriteFile failed: %s", err.Error())
		}
	}

	planFile := filepath.Join(dir, "flash.json")
	if err := os.WriteFile(planFile, []byte(testPlan), 0666); err != nil {
		t.Fatalf("WriteFile failed: %s", err.Error())
	}

	return planFile
}

func TestLoadPlan(t *testing.T) {
	planFile := writeTestPlan(t)

	p, err := Load(planFile)
	if err != nil {
		t.Fatalf("Load failed: %s", err.Error())
	}

	if p.Name != "testflash" ||
		p.FlashCapacity != 2097152 ||
		p.EraseBlockSize != 2048 ||
		p.Generation != 1 {

		t.Errorf("plan fields decoded wrong: %+v", p)
	}
	if len(p.Elements) != 2 {
		t.Fatalf("%d elements decoded; want 2", len(p.Elements))
	}
	if p.Elements[0].Type != "data" || p.Elements[0].File != "boot.bin" {
		t.Errorf("element 0 decoded wrong: %+v", p.Elements[0])
	}
}

func TestLoadPlanErrors(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		body string
	}{
		{"no-capacity", `{"erase_block_size": 2048,
			"elements": [{"type": "data", "file": "x"}]}`},
		{"no-elements", `{"flash_capacity": 2097152,
			"erase_block_size": 2048}`},
		{"bad-field", `{"flash_capacity": 2097152, "erase_block_size": 2048,
			"frobnicate": 1,
			"elements": [{"type": "data", "file": "x"}]}`},
		{"element-no-file", `{"flash_capacity": 2097152,
			"erase_block_size": 2048, "elements": [{"type": "data"}]}`},
		{"not-json", `fnord`},
	}

	for _, c := range cases {
		name := filepath.Join(dir, c.name+".json")
		if err := os.WriteFile(name, []byte(c.body), 0666); err != nil {
			t.Fatalf("WriteFile failed: %s", err.Error())
		}

		if _, err := Load(name); err == nil {
			t.Errorf("%s: malformed plan accepted", c.name)
		}
	}
}

func TestBuildPlan(t *testing.T) {
	planFile := writeTestPlan(t)

	p, err := Load(planFile)
	if err != nil {
		t.Fatalf("Load failed: %s", err.Error())
	}

	r, err := p.Build()
	if err != nil {
		t.Fatalf("Build failed: %s", err.Error())
	}

	for i, h := range r.Headers {
		if !h.IsGood() {
			t.Errorf("header %d is %s", i,
				ffff.ValidityName(h.Validity()))
		}
	}
	if !r.SameAs() {
		t.Errorf("built headers differ")
	}

	h := r.Headers[0]
	if len(h.Elements) != 3 {
		t.Fatalf("%d elements built; want 3", len(h.Elements))
	}
	if h.Elements[0].Location == 0 {
		t.Errorf("element 0 location not assigned")
	}
}

func TestEmit(t *testing.T) {
	planFile := writeTestPlan(t)

	p, err := Load(planFile)
	if err != nil {
		t.Fatalf("Load failed: %s", err.Error())
	}

	outDir := filepath.Join(t.TempDir(), "out")
	if err := p.Emit(outDir); err != nil {
		t.Fatalf("Emit failed: %s", err.Error())
	}

	img := filepath.Join(outDir, "testflash.ffff")
	if _, err := os.Stat(img); err != nil {
		t.Fatalf("emitted image missing: %s", err.Error())
	}

	mapFile := filepath.Join(outDir, "testflash.map")
	if _, err := os.Stat(mapFile); err != nil {
		t.Fatalf("emitted map missing: %s", err.Error())
	}
}
