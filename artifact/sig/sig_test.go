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
	"strings"
	"testing"
)

func TestSignatureBlockRoundTrip(t *testing.T) {
	signature := bytes.Repeat([]byte{0xa5}, 256)

	sb, err := NewSignatureBlock(SIG_TYPE_RSA2048_SHA256, "test-key-01",
		signature)
	if err != nil {
		t.Fatalf("NewSignatureBlock failed: %s", err.Error())
	}

	if sb.Length != uint32(SIG_FIXED_PART_SIZE+len(signature)) {
		t.Fatalf("block length = %d; want %d", sb.Length,
			SIG_FIXED_PART_SIZE+len(signature))
	}

	blob, err := sb.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %s", err.Error())
	}
	if len(blob) != int(sb.Length) {
		t.Fatalf("packed size = %d; want %d", len(blob), sb.Length)
	}

	sb2, err := ParseSignatureBlock(blob)
	if err != nil {
		t.Fatalf("ParseSignatureBlock failed: %s", err.Error())
	}

	if sb2.Type != sb.Type || sb2.Length != sb.Length {
		t.Errorf("fixed fields changed in round trip")
	}
	if sb2.KeyNameString() != "test-key-01" {
		t.Errorf("key name = %q; want %q", sb2.KeyNameString(),
			"test-key-01")
	}
	if !bytes.Equal(sb2.Signature, signature) {
		t.Errorf("signature bytes changed in round trip")
	}
}

func TestSignatureBlockLongKeyName(t *testing.T) {
	name := strings.Repeat("x", SIG_KEY_NAME_LENGTH+1)
	if _, err := NewSignatureBlock(SIG_TYPE_RSA2048_SHA256, name,
		nil); err == nil {

		t.Fatalf("oversized key name accepted")
	}
}

func TestSignatureBlockBadLength(t *testing.T) {
	sb, err := NewSignatureBlock(SIG_TYPE_RSA2048_SHA256, "k",
		[]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewSignatureBlock failed: %s", err.Error())
	}

	blob, err := sb.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %s", err.Error())
	}

	// A length field pointing past the end of the buffer must be rejected.
	blob[0] = 0xff
	blob[1] = 0xff
	if _, err := ParseSignatureBlock(blob); err == nil {
		t.Fatalf("out-of-range length accepted")
	}

	// So must one shorter than the fixed part.
	blob[0] = 0x10
	blob[1] = 0x00
	if _, err := ParseSignatureBlock(blob); err == nil {
		t.Fatalf("undersized length accepted")
	}
}

func TestParseSigType(t *testing.T) {
	typ, err := ParseSigType("rsa2048-sha256")
	if err != nil || typ != SIG_TYPE_RSA2048_SHA256 {
		t.Fatalf("ParseSigType(rsa2048-sha256) = %d, %v", typ, err)
	}

	if _, err := ParseSigType("md5"); err == nil {
		t.Fatalf("unknown signature type accepted")
	}

	if SigTypeName(SIG_TYPE_RSA2048_SHA256) != "rsa2048-sha256" {
		t.Errorf("SigTypeName mismatch")
	}
}
