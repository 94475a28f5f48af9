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
	"os"
	"path/filepath"

	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

// Emit builds the plan's flash image and lands its artifacts (the image and
// its companion map file) in outDir.  Everything is produced in a staging
// directory first, then moved into place, so an emit that fails partway
// never leaves a half-written output tree.
func (p *Plan) Emit(outDir string) error {
	r, err := p.Build()
	if err != nil {
		return err
	}

	staging, err := os.MkdirTemp("", "brt-emit")
	if err != nil {
		return util.ChildBrtError(err)
	}
	defer os.RemoveAll(staging)

	name := p.Name
	if name == "" {
		name = "flash"
	}

	imgName, err := r.Write(filepath.Join(staging, name))
	if err != nil {
		return err
	}

	if err := r.CreateMapFile(imgName, 0, name); err != nil {
		return err
	}

	if !util.NodeExist(outDir) {
		if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
			return util.ChildBrtError(err)
		}
	}

	if err := util.CopyDir(staging, outDir); err != nil {
		return err
	}

	util.StatusMessage(util.VERBOSITY_DEFAULT, "Emitted %s to %s\n",
		name, outDir)
	return nil
}
