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
	"encoding/hex"
)

// IsPowerOf2 indicates whether x is a (nonzero) power of two.
func IsPowerOf2(x uint32) bool {
	return x != 0 && x&(x-1) == 0
}

// BlockAligned indicates whether location falls on a blockSize boundary.
// blockSize must be a power of two.
func BlockAligned(location uint32, blockSize uint32) bool {
	return location&(blockSize-1) == 0
}

// NextBoundary rounds location up to the next blockSize boundary.  A
// location already on a boundary is returned unchanged.
func NextBoundary(location uint32, blockSize uint32) uint32 {
	return (location + blockSize - 1) &^ (blockSize - 1)
}

// IsConstantFill indicates whether every byte of b equals fill.
func IsConstantFill(b []byte, fill byte) bool {
	for _, c := range b {
		if c != fill {
			return false
		}
	}
	return true
}

// HexDumpLines formats a blob as 32-byte hex lines.  If showAll is false and
// the blob exceeds three lines, only the first and last lines are produced
// with a ":" spacer between them.
func HexDumpLines(blob []byte, showAll bool, indent string) []string {
	const maxOnLine = 32

	var lines []string
	if showAll || len(blob) <= 3*maxOnLine {
		for start := 0; start < len(blob); start += maxOnLine {
			end := start + maxOnLine
			if end > len(blob) {
				end = len(blob)
			}
			lines = append(lines, indent+hex.EncodeToString(blob[start:end]))
		}
	} else {
		lines = append(lines, indent+hex.EncodeToString(blob[:maxOnLine]))
		lines = append(lines, indent+"  :")
		lines = append(lines,
			indent+hex.EncodeToString(blob[len(blob)-maxOnLine:]))
	}

	return lines
}
