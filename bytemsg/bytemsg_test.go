package bytemsg

import (
	"encoding/binary"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	m := New(64)
	m.WriteByte(0x7)
	m.WriteUint16(binary.LittleEndian, 0x1234)
	m.WriteUint32(binary.LittleEndian, 0xdeadbeef)
	m.WriteString(binary.LittleEndian, "hello")

	b, err := m.ReadByte()
	if err != nil || b != 0x7 {
		t.Fatalf("ReadByte = %v, %v", b, err)
	}
	u16, err := m.ReadUint16(binary.LittleEndian)
	if err != nil || u16 != 0x1234 {
		t.Fatalf("ReadUint16 = %v, %v", u16, err)
	}
	u32, err := m.ReadUint32(binary.LittleEndian)
	if err != nil || u32 != 0xdeadbeef {
		t.Fatalf("ReadUint32 = %v, %v", u32, err)
	}
	s, err := m.ReadString(binary.LittleEndian)
	if err != nil || s != "hello" {
		t.Fatalf("ReadString = %q, %v", s, err)
	}
}

func TestPopFrontN(t *testing.T) {
	m := New(16)
	m.Write([]byte{1, 2, 3, 4, 5})
	m.pos = 2
	m.PopFrontN(2)
	if m.Size() != 3 {
		t.Fatalf("size = %d, want 3", m.Size())
	}
	if got := m.Bytes(); got[0] != 3 || got[1] != 4 || got[2] != 5 {
		t.Fatalf("bytes = %v", got)
	}
	if m.pos != 0 {
		t.Fatalf("pos = %d, want clamped to 0", m.pos)
	}
}

func TestPopFrontNAll(t *testing.T) {
	m := New(16)
	m.Write([]byte{1, 2, 3})
	m.PopFrontN(10)
	if m.Size() != 0 {
		t.Fatalf("size = %d, want 0", m.Size())
	}
}

func TestGrowPanicsOnOverflow(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overflow")
		}
	}()
	m := New(2)
	m.Write([]byte{1, 2, 3})
}

func TestReadPastSizeErrors(t *testing.T) {
	m := New(4)
	m.WriteByte(1)
	if _, err := m.ReadByte(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ReadByte(); err == nil {
		t.Fatal("expected error reading past size")
	}
}
