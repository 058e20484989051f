package serial

import (
	"context"
	"errors"
	"testing"

	transport "code.hybscloud.com/transport"
)

func TestTransportPredicatesBeforeOpen(t *testing.T) {
	tr := Dial("/dev/ttyUSB0", 115200, nil)
	if tr.Name() != "SERIAL:/dev/ttyUSB0" {
		t.Fatalf("Name() = %q", tr.Name())
	}
	if tr.MessageOriented() {
		t.Fatal("serial substrate is byte-stream, not message-oriented")
	}
	if !tr.Active() {
		t.Fatal("serial substrate has no listen/accept side, should be Active")
	}
	if tr.Connected() {
		t.Fatal("should not be connected before Open")
	}
}

func TestAcceptAlwaysDenied(t *testing.T) {
	tr := Dial("/dev/ttyUSB0", 115200, nil)
	if _, err := tr.Accept(context.Background()); !errors.Is(err, transport.ErrAccessDenied) {
		t.Fatalf("Accept = %v, want ErrAccessDenied", err)
	}
}

func TestReadWriteBeforeOpenReturnsConnectionClosed(t *testing.T) {
	tr := Dial("/dev/ttyUSB0", 115200, nil)
	ctx := context.Background()
	if _, err := tr.Read(ctx, make([]byte, 1)); !errors.Is(err, transport.ErrConnectionClosed) {
		t.Fatalf("Read = %v, want ErrConnectionClosed", err)
	}
	if _, err := tr.Write(ctx, []byte{0}); !errors.Is(err, transport.ErrConnectionClosed) {
		t.Fatalf("Write = %v, want ErrConnectionClosed", err)
	}
}

func TestCloseWithoutOpenIsANoOp(t *testing.T) {
	tr := Dial("/dev/ttyUSB0", 115200, nil)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := tr.Close(); !errors.Is(err, transport.ErrConnectionClosed) {
		t.Fatalf("second Close = %v, want ErrConnectionClosed", err)
	}
}
