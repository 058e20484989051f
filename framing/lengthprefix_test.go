// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framing

import "testing"

func TestLengthPrefixNilOrderDefaultsToNative(t *testing.T) {
	payload := []byte("native order round trip")
	enc, err := EncodeLengthPrefix(nil, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	n, need := LengthPrefix(nil)(enc)
	if need != Complete {
		t.Fatalf("need = %v, want Complete", need)
	}
	if n != len(enc) {
		t.Fatalf("n = %d, want %d", n, len(enc))
	}
}

func TestLengthPrefixExtended16NilOrderRoundTrips(t *testing.T) {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}
	enc, err := EncodeLengthPrefix(nil, payload)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	n, need := LengthPrefix(nil)(enc)
	if need != Complete || n != len(enc) {
		t.Fatalf("n=%d need=%v, want n=%d Complete", n, need, len(enc))
	}
}
