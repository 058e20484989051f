package dsl

import "testing"

func TestParseFlags(t *testing.T) {
	ts := Parse("TCP;Active;Host=localhost;Port=3000")
	if !ts.HasParam("TCP") {
		t.Fatal("expected TCP flag")
	}
	if got := ts.GetProtocol(); got != ProtocolTCP {
		t.Fatalf("GetProtocol = %v, want TCP", got)
	}
	if !ts.Active() {
		t.Fatal("expected Active")
	}
	if got := ts.Host(); got != "localhost" {
		t.Fatalf("Host = %q", got)
	}
	if got := ts.Port(); got != 3000 {
		t.Fatalf("Port = %d", got)
	}
}

func TestParseCaseInsensitive(t *testing.T) {
	ts := Parse("tcp;host=127.0.0.1;PORT=80")
	if got := ts.GetProtocol(); got != ProtocolTCP {
		t.Fatalf("GetProtocol = %v", got)
	}
	if got := ts.Host(); got != "127.0.0.1" {
		t.Fatalf("Host = %q", got)
	}
	if got := ts.Port(); got != 80 {
		t.Fatalf("Port = %d", got)
	}
}

func TestParsePassiveDefaultActive(t *testing.T) {
	if !Parse("TCP;Port=1").Active() {
		t.Fatal("expected default Active")
	}
	if Parse("TCP;Passive;Port=1").Active() {
		t.Fatal("expected Passive to clear Active")
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	ts := Parse(" TCP ; Host = example.com ; Port = 42 ")
	if got := ts.Host(); got != "example.com" {
		t.Fatalf("Host = %q", got)
	}
	if got := ts.Port(); got != 42 {
		t.Fatalf("Port = %d", got)
	}
}

func TestSerializeOrder(t *testing.T) {
	ts := New()
	ts.SetProtocol(ProtocolSerial)
	ts.SetActive(true)
	ts.SetParam(ParamName, "COM3")
	ts.SetParamInt(ParamBaudRate, 9600)
	ts.SetParam(ParamParity, "Even")
	ts.SetParam("Zebra", "last")
	ts.SetParam("Apple", "first")

	got := ts.Serialize()
	want := "SERIAL;Active;Name=COM3;BaudRate=9600;Parity=Even;Apple=first;Zebra=last"
	if got != want {
		t.Fatalf("Serialize = %q, want %q", got, want)
	}
}

// RoundTrip is spec.md §8's transport-string property: parse ->
// serialize -> parse yields the same parameter map.
func TestRoundTrip(t *testing.T) {
	cases := []string{
		"TCP;Active;Host=localhost;Port=3000",
		"UDP;Passive;Port=9000",
		"SERIAL;Name=COM2;BaudRate=115200;ByteSize=8;Parity=No;StopBits=1",
		"PIPE;Passive;Name=mypipe",
		"WS;Host=0.0.0.0;Port=8080",
		"INPROCESS;Name=ch1",
		"TCP",
	}
	for _, in := range cases {
		t.Run(in, func(t *testing.T) {
			first := Parse(in)
			second := Parse(first.Serialize())
			if first.Serialize() != second.Serialize() {
				t.Fatalf("round trip mismatch: %q -> %q -> %q", in, first.Serialize(), second.Serialize())
			}
			for key, p := range first.params {
				q, ok := second.params[key]
				if !ok || q.value != p.value {
					t.Fatalf("param %q mismatch: %+v vs %+v", key, p, q)
				}
			}
		})
	}
}

func TestParamIntDefaultsToZero(t *testing.T) {
	ts := Parse("TCP;Port=notanumber")
	if got := ts.Port(); got != 0 {
		t.Fatalf("Port = %d, want 0", got)
	}
	if ts := Parse("TCP"); ts.Port() != 0 {
		t.Fatal("absent Port should be 0")
	}
}

func TestSetProtocolClearsOthers(t *testing.T) {
	ts := Parse("TCP;UDP")
	// Whichever protocolNames scans first wins; verify SetProtocol
	// leaves exactly one flag standing.
	ts.SetProtocol(ProtocolPipe)
	if ts.HasParam("TCP") || ts.HasParam("UDP") {
		t.Fatal("SetProtocol should clear other protocol flags")
	}
	if ts.GetProtocol() != ProtocolPipe {
		t.Fatalf("GetProtocol = %v, want PIPE", ts.GetProtocol())
	}
}
