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
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cast"

	"github.com/MotorolaMobilityLLC/bootrom-tools/artifact/ffff"
	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

// A flash plan is a JSON description of a complete FFFF image: the flash
// characteristics plus one entry per element, e.g.:
//
//	{
//	    "name": "spirocket",
//	    "flash_capacity": 2097152,
//	    "erase_block_size": 2048,
//	    "image_length": 0,
//	    "generation": 1,
//	    "elements": [
//	        { "type": "s2fw", "id": 1, "generation": 1, "file": "s2.bin" }
//	    ]
//	}

type PlanElement struct {
	Type       string
	Id         uint32
	Generation uint32
	Location   uint32
	File       string
}

type Plan struct {
	Name           string
	FlashCapacity  uint32
	EraseBlockSize uint32
	ImageLength    uint32
	Generation     uint32
	HeaderSize     uint32
	Elements       []PlanElement

	// Directory of the plan file; element file paths resolve against it.
	basePath string
}

func decodeElement(kv map[string]interface{}) (PlanElement, error) {
	elt := PlanElement{}

	for k, v := range kv {
		switch k {
		case "type":
			s, err := cast.ToStringE(v)
			if err != nil {
				return elt, util.FmtBrtError(
					"invalid element type: %v", v)
			}
			elt.Type = s

		case "id":
			n, err := cast.ToUint32E(v)
			if err != nil {
				return elt, util.FmtBrtError(
					"invalid element id: %v", v)
			}
			elt.Id = n

		case "generation":
			n, err := cast.ToUint32E(v)
			if err != nil {
				return elt, util.FmtBrtError(
					"invalid element generation: %v", v)
			}
			elt.Generation = n

		case "location":
			n, err := cast.ToUint32E(v)
			if err != nil {
				return elt, util.FmtBrtError(
					"invalid element location: %v", v)
			}
			elt.Location = n

		case "file":
			s, err := cast.ToStringE(v)
			if err != nil {
				return elt, util.FmtBrtError(
					"invalid element file: %v", v)
			}
			elt.File = s

		default:
			return elt, util.FmtBrtError(
				"unrecognized element field: %s", k)
		}
	}

	if elt.Type == "" {
		return elt, util.NewBrtError("element entry missing \"type\"")
	}
	if elt.File == "" {
		return elt, util.NewBrtError("element entry missing \"file\"")
	}

	return elt, nil
}

func decodePlan(kv map[string]interface{}) (*Plan, error) {
	p := &Plan{}

	for k, v := range kv {
		switch k {
		case "name":
			s, err := cast.ToStringE(v)
			if err != nil {
				return nil, util.FmtBrtError("invalid name: %v", v)
			}
			p.Name = s

		case "flash_capacity":
			n, err := cast.ToUint32E(v)
			if err != nil {
				return nil, util.FmtBrtError(
					"invalid flash_capacity: %v", v)
			}
			p.FlashCapacity = n

		case "erase_block_size":
			n, err := cast.ToUint32E(v)
			if err != nil {
				return nil, util.FmtBrtError(
					"invalid erase_block_size: %v", v)
			}
			p.EraseBlockSize = n

		case "image_length":
			n, err := cast.ToUint32E(v)
			if err != nil {
				return nil, util.FmtBrtError(
					"invalid image_length: %v", v)
			}
			p.ImageLength = n

		case "generation":
			n, err := cast.ToUint32E(v)
			if err != nil {
				return nil, util.FmtBrtError(
					"invalid generation: %v", v)
			}
			p.Generation = n

		case "header_size":
			n, err := cast.ToUint32E(v)
			if err != nil {
				return nil, util.FmtBrtError(
					"invalid header_size: %v", v)
			}
			p.HeaderSize = n

		case "elements":
			slice, err := cast.ToSliceE(v)
			if err != nil {
				return nil, util.FmtBrtError(
					"invalid elements list: %v", v)
			}
			for _, entry := range slice {
				kv, err := cast.ToStringMapE(entry)
				if err != nil {
					return nil, util.FmtBrtError(
						"invalid element entry: %v", entry)
				}
				elt, err := decodeElement(kv)
				if err != nil {
					return nil, err
				}
				p.Elements = append(p.Elements, elt)
			}

		default:
			return nil, util.FmtBrtError("unrecognized plan field: %s", k)
		}
	}

	if p.FlashCapacity == 0 {
		return nil, util.NewBrtError("plan missing \"flash_capacity\"")
	}
	if p.EraseBlockSize == 0 {
		return nil, util.NewBrtError("plan missing \"erase_block_size\"")
	}
	if len(p.Elements) == 0 {
		return nil, util.NewBrtError("plan has no elements")
	}

	return p, nil
}

// Load reads and decodes a flash plan file.
func Load(filename string) (*Plan, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, util.FmtBrtError("Unable to read plan \"%s\": %s",
			filename, err.Error())
	}

	var kv map[string]interface{}
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, util.FmtBrtError("Malformed plan \"%s\": %s",
			filename, err.Error())
	}

	p, err := decodePlan(kv)
	if err != nil {
		return nil, util.PreBrtError(err, "Plan \"%s\"", filename)
	}

	p.basePath = filepath.Dir(filename)
	return p, nil
}

// resolve maps an element file path to an absolute path, treating relative
// paths as relative to the plan file.
func (p *Plan) resolve(name string) string {
	if filepath.IsAbs(name) || p.basePath == "" {
		return name
	}
	return filepath.Join(p.basePath, name)
}

// Build assembles the flash image the plan describes: the RomImage is
// created, every element is added to both headers, and the image is
// post-processed.
func (p *Plan) Build() (*ffff.RomImage, error) {
	r, err := ffff.NewRomImage(p.Name, p.FlashCapacity, p.EraseBlockSize,
		p.ImageLength, p.Generation, p.HeaderSize)
	if err != nil {
		return nil, err
	}

	for _, pe := range p.Elements {
		eltType, err := ffff.ParseEltType(pe.Type)
		if err != nil {
			return nil, err
		}

		if err := r.AddElementFromFile(eltType, pe.Id, pe.Generation,
			pe.Location, p.resolve(pe.File)); err != nil {

			return nil, err
		}
	}

	if err := r.PostProcess(); err != nil {
		return nil, err
	}

	return r, nil
}
