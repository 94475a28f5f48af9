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

package sig

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/MotorolaMobilityLLC/bootrom-tools/util"
)

// A signature block is a self-sizing record carried as the payload of a TFTF
// signature section:
//
//	length        (4)   104 + signature byte count
//	type          (4)   signing algorithm
//	key_name      (96)  zero-padded ASCII
//	signature     (length - 104)

const (
	SIG_TYPE_UNKNOWN        = 0x00
	SIG_TYPE_RSA2048_SHA256 = 0x01
)

const SIG_KEY_NAME_LENGTH = 96

const (
	SIG_OFF_LENGTH    = 0x00
	SIG_OFF_TYPE      = 0x04
	SIG_OFF_KEY_NAME  = 0x08
	SIG_OFF_SIGNATURE = 0x68
)

// Size of the fixed portion of the signature block.
const SIG_FIXED_PART_SIZE = SIG_OFF_SIGNATURE

var sigTypeNameMap = map[uint32]string{
	SIG_TYPE_RSA2048_SHA256: "rsa2048-sha256",
}

func SigTypeName(sigType uint32) string {
	name, ok := sigTypeNameMap[sigType]
	if !ok {
		return "???"
	}

	return name
}

func ParseSigType(name string) (uint32, error) {
	for typ, typName := range sigTypeNameMap {
		if typName == name {
			return typ, nil
		}
	}

	return SIG_TYPE_UNKNOWN, util.FmtBrtError(
		"Unknown signature type \"%s\"", name)
}

type sigFixedPart struct {
	Length  uint32
	Type    uint32
	KeyName [SIG_KEY_NAME_LENGTH]byte
}

type SignatureBlock struct {
	Length    uint32
	Type      uint32
	KeyName   [SIG_KEY_NAME_LENGTH]byte
	Signature []byte
}

// NewSignatureBlock builds a signature block from its parts, deriving the
// length field from the signature size.
func NewSignatureBlock(sigType uint32, keyName string,
	signature []byte) (SignatureBlock, error) {

	sb := SignatureBlock{
		Length:    uint32(SIG_FIXED_PART_SIZE + len(signature)),
		Type:      sigType,
		Signature: signature,
	}

	if len(keyName) > SIG_KEY_NAME_LENGTH {
		return sb, util.FmtBrtError(
			"Key name longer than %d bytes: \"%s\"",
			SIG_KEY_NAME_LENGTH, keyName)
	}
	copy(sb.KeyName[:], keyName)

	return sb, nil
}

// ParseSignatureBlock unpacks a signature block from the start of a buffer.
func ParseSignatureBlock(buf []byte) (SignatureBlock, error) {
	sb := SignatureBlock{}

	r := bytes.NewReader(buf)

	var fixed sigFixedPart
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return sb, util.FmtBrtError(
			"Error reading signature block: %s", err.Error())
	}

	if int(fixed.Length) < SIG_FIXED_PART_SIZE ||
		int(fixed.Length) > len(buf) {

		return sb, util.FmtBrtError(
			"Signature block length out of range; "+
				"length=%d buf-size=%d", fixed.Length, len(buf))
	}

	sb.Length = fixed.Length
	sb.Type = fixed.Type
	sb.KeyName = fixed.KeyName
	sb.Signature = buf[SIG_FIXED_PART_SIZE:fixed.Length]

	return sb, nil
}

func (sb *SignatureBlock) KeyNameString() string {
	name := sb.KeyName[:]
	if i := bytes.IndexByte(name, 0); i != -1 {
		name = name[:i]
	}
	return string(name)
}

func (sb *SignatureBlock) Write(w io.Writer) (int, error) {
	fixed := sigFixedPart{
		Length:  sb.Length,
		Type:    sb.Type,
		KeyName: sb.KeyName,
	}

	if err := binary.Write(w, binary.LittleEndian, &fixed); err != nil {
		return 0, util.ChildBrtError(err)
	}

	size, err := w.Write(sb.Signature)
	if err != nil {
		return SIG_FIXED_PART_SIZE, util.ChildBrtError(err)
	}

	return SIG_FIXED_PART_SIZE + size, nil
}

func (sb *SignatureBlock) Bytes() ([]byte, error) {
	b := &bytes.Buffer{}

	if _, err := sb.Write(b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func (sb *SignatureBlock) Map(offset int) map[string]interface{} {
	return map[string]interface{}{
		"length":     sb.Length,
		"type":       sb.Type,
		"_type_name": SigTypeName(sb.Type),
		"key_name":   sb.KeyNameString(),
		"signature":  hex.EncodeToString(sb.Signature),
		"_offset":    offset,
	}
}

// WriteMap emits "name  offset" lines for the signature block fields, for
// consumption by external tooling.
func WriteMap(w io.Writer, baseOffset int, prefix string) error {
	if prefix != "" {
		if _, err := fmt.Fprintf(w, "%s %08x\n", prefix,
			baseOffset); err != nil {

			return util.ChildBrtError(err)
		}
		prefix += "."
	}

	fields := []struct {
		name string
		off  int
	}{
		{"length", SIG_OFF_LENGTH},
		{"type", SIG_OFF_TYPE},
		{"key_name", SIG_OFF_KEY_NAME},
		{"key_signature", SIG_OFF_SIGNATURE},
	}

	for _, f := range fields {
		if _, err := fmt.Fprintf(w, "%s%s  %08x\n", prefix, f.name,
			baseOffset+f.off); err != nil {

			return util.ChildBrtError(err)
		}
	}

	return nil
}
