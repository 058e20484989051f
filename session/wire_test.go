package session

import (
	"testing"

	"code.hybscloud.com/transport/bytemsg"
	"code.hybscloud.com/transport/framing"
)

// skipLenAndOp reads past the 2-byte length header and asserts the
// opcode byte, returning the message positioned at the payload.
func skipLenAndOp(t *testing.T, raw []byte, want opcode) *bytemsg.Message {
	t.Helper()
	m := bytemsg.Wrap(raw)
	n, err := m.ReadUint16(order)
	if err != nil {
		t.Fatalf("read length header: %v", err)
	}
	if int(n) != len(raw)-2 {
		t.Fatalf("length header = %d, want %d", n, len(raw)-2)
	}
	op, err := m.ReadByte()
	if err != nil {
		t.Fatalf("read opcode: %v", err)
	}
	if opcode(op) != want {
		t.Fatalf("opcode = %#x, want %#x", op, want)
	}
	return m
}

func TestEncodeDecodeCreate(t *testing.T) {
	info := CreateInfo{Name: "alice", Password: "s3cr3t", Force: true}
	m := skipLenAndOp(t, encodeCreate(info), opCreate)

	name, err := m.ReadString(order)
	if err != nil || name != info.Name {
		t.Fatalf("name = %q, %v", name, err)
	}
	pw, err := m.ReadString(order)
	if err != nil || pw != info.Password {
		t.Fatalf("password = %q, %v", pw, err)
	}
	forceByte, err := m.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if (forceByte != 0) != info.Force {
		t.Fatalf("force = %v, want %v", forceByte != 0, info.Force)
	}
}

func TestEncodeDecodeCreateResponse(t *testing.T) {
	id := NewID()
	info := Info{UserID: 7, UserRights: 3}
	m := skipLenAndOp(t, encodeCreateResponse(0, id, info), opCreate|opResponse)

	errCode, err := m.ReadUint32(order)
	if err != nil || errCode != 0 {
		t.Fatalf("errCode = %d, %v", errCode, err)
	}
	idBytes, err := m.ReadN(16)
	if err != nil || decodeID(idBytes) != id {
		t.Fatalf("id round trip failed: %v", err)
	}
	userID, err := m.ReadUint32(order)
	if err != nil || userID != info.UserID {
		t.Fatalf("userID = %d, %v", userID, err)
	}
	userRights, err := m.ReadUint32(order)
	if err != nil || userRights != info.UserRights {
		t.Fatalf("userRights = %d, %v", userRights, err)
	}
}

func TestEncodeDecodeOpenAndResponse(t *testing.T) {
	id := NewID()
	m := skipLenAndOp(t, encodeOpen(id), opOpen)
	idBytes, err := m.ReadN(16)
	if err != nil || decodeID(idBytes) != id {
		t.Fatalf("id round trip failed: %v", err)
	}

	info := Info{UserID: 1, UserRights: 2}
	m2 := skipLenAndOp(t, encodeOpenResponse(0, info), opOpen|opResponse)
	errCode, err := m2.ReadUint32(order)
	if err != nil || errCode != 0 {
		t.Fatalf("errCode = %d, %v", errCode, err)
	}
	userID, err := m2.ReadUint32(order)
	if err != nil || userID != info.UserID {
		t.Fatalf("userID = %d, %v", userID, err)
	}
}

func TestEncodeDecodeDataMessage(t *testing.T) {
	payload := []byte("hello, session")
	m := skipLenAndOp(t, encodeData(true, 42, 99, payload), opSequence)

	sendID, err := m.ReadUint16(order)
	if err != nil || sendID != 42 {
		t.Fatalf("sendID = %d, %v", sendID, err)
	}
	ack, err := m.ReadUint16(order)
	if err != nil || ack != 99 {
		t.Fatalf("ack = %d, %v", ack, err)
	}
	if string(m.Remaining()) != string(payload) {
		t.Fatalf("payload = %q, want %q", m.Remaining(), payload)
	}

	m2 := skipLenAndOp(t, encodeData(false, 1, 2, payload), opMessage)
	_ = m2
}

func TestEncodeDecodeAckAndTest(t *testing.T) {
	m := skipLenAndOp(t, encodeAck(1234), opAck)
	ack, err := m.ReadUint16(order)
	if err != nil || ack != 1234 {
		t.Fatalf("ack = %d, %v", ack, err)
	}

	skipLenAndOp(t, encodeTest(false), opTest)
	skipLenAndOp(t, encodeTest(true), opTest|opResponse)
}

func TestEncodeDecodeClose(t *testing.T) {
	skipLenAndOp(t, encodeClose(), opClose)
}

func TestBytesExpected(t *testing.T) {
	if _, need := bytesExpected([]byte{1}); need != framing.Incomplete {
		t.Fatalf("short buffer should be Incomplete, got %v", need)
	}

	raw := encodeClose()
	n, need := bytesExpected(raw)
	if need != framing.Complete {
		t.Fatalf("full frame should be Complete, got %v", need)
	}
	if n != len(raw) {
		t.Fatalf("bytesExpected = %d, want %d", n, len(raw))
	}

	oversized := make([]byte, 2)
	order.PutUint16(oversized, maxMessage) // declared size alone exceeds maxMessage-2
	if _, need := bytesExpected(oversized); need != framing.Invalid {
		t.Fatalf("oversized declared length should be Invalid, got %v", need)
	}
}

func TestIDLessModulo16(t *testing.T) {
	cases := []struct {
		a, b uint16
		want bool
	}{
		{0, 1, true},
		{1, 0, false},
		{0, 0, false},
		{65535, 0, true},  // wraps forward
		{0, 65535, false}, // wraps backward
		{100, 200, true},
		{200, 100, false},
		{0, 32768, false}, // exactly half the ring: neither precedes under strict <
	}
	for _, c := range cases {
		if got := idLess(c.a, c.b); got != c.want {
			t.Errorf("idLess(%d, %d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestIDLessEqReflexive(t *testing.T) {
	if !idLessEq(5, 5) {
		t.Fatal("idLessEq should be reflexive")
	}
	if idLess(5, 5) {
		t.Fatal("idLess should be irreflexive")
	}
}
