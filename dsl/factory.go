// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dsl

import (
	"fmt"
	"strconv"

	tarmserial "github.com/tarm/serial"

	transport "code.hybscloud.com/transport"
	"code.hybscloud.com/transport/executor"
	"code.hybscloud.com/transport/inprocess"
	"code.hybscloud.com/transport/pipe"
	"code.hybscloud.com/transport/serial"
	"code.hybscloud.com/transport/tcp"
	"code.hybscloud.com/transport/udp"
	"code.hybscloud.com/transport/ws"
)

// Factory constructs concrete transport.Transport values from a parsed
// String, ported from net/transport_factory.cpp's TransportFactoryImpl.
// Every field is optional; the zero Factory works for every protocol
// except INPROCESS, which needs a shared Host to rendezvous on.
type Factory struct {
	// Exec is handed to every constructed Transport's Executor. A nil
	// Exec leaves substrates to their own default (executor.Inline).
	Exec executor.Executor

	// Inprocess is the channel-name registry INPROCESS transports
	// rendezvous through. Required only for the INPROCESS protocol.
	Inprocess *inprocess.Host

	// WSPath is the HTTP path a passive WS transport upgrades, used
	// when the DSL string doesn't carry its own (the grammar has no
	// Path parameter; §6 treats the handshake as an external concern).
	WSPath string
}

// Create builds the transport described by ts, ported from
// TransportFactoryImpl::CreateTransport's protocol switch. An absent
// protocol flag defaults to TCP, matching the original.
func (f *Factory) Create(ts *String) (transport.Transport, error) {
	protocol := ts.GetProtocol()
	if protocol == protocolCount {
		protocol = ProtocolTCP
	}
	active := ts.Active()

	switch protocol {
	case ProtocolTCP:
		return f.createTCP(ts, active)
	case ProtocolUDP:
		return f.createUDP(ts, active)
	case ProtocolSerial:
		return f.createSerial(ts)
	case ProtocolPipe:
		return f.createPipe(ts, active)
	case ProtocolWS:
		return f.createWS(ts, active)
	case ProtocolInprocess:
		return f.createInprocess(ts, active)
	default:
		return nil, fmt.Errorf("%w: unknown protocol", transport.ErrInvalidArgument)
	}
}

func (f *Factory) createTCP(ts *String, active bool) (transport.Transport, error) {
	host := ts.Host()
	if host == "" {
		host = "localhost"
	}
	port := ts.Port()
	if port <= 0 {
		return nil, fmt.Errorf("%w: TCP port is not specified", transport.ErrInvalidArgument)
	}
	service := strconv.Itoa(port)
	if active {
		return tcp.Dial(host, service, f.Exec), nil
	}
	return tcp.Listen(host, service, f.Exec), nil
}

func (f *Factory) createUDP(ts *String, active bool) (transport.Transport, error) {
	host := ts.Host()
	port := ts.Port()
	if port <= 0 {
		return nil, fmt.Errorf("%w: UDP port is not specified", transport.ErrInvalidArgument)
	}
	service := strconv.Itoa(port)
	if active {
		if host == "" {
			return nil, fmt.Errorf("%w: UDP host is not specified", transport.ErrInvalidArgument)
		}
		return udp.Dial(host, service, f.Exec), nil
	}
	return udp.Listen(host, service, f.Exec), nil
}

func (f *Factory) createSerial(ts *String) (transport.Transport, error) {
	name := ts.Name()
	if name == "" {
		return nil, fmt.Errorf("%w: serial port name is not specified", transport.ErrInvalidArgument)
	}
	cfg := serial.Config{
		Name:        name,
		Baud:        ts.BaudRate(),
		Size:        byte(ts.ByteSize()),
		Parity:      parseParity(ts.Parity()),
		StopBits:    parseStopBits(ts.StopBits()),
		FlowControl: ts.FlowControl(),
	}
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.Size == 0 {
		cfg.Size = 8
	}
	return serial.DialConfig(cfg, f.Exec), nil
}

// parseParity maps the DSL's {No, Even, Odd} to tarm/serial's Parity,
// defaulting to ParityNone on anything else, matching
// transport_factory.cpp's ParseParity default case.
func parseParity(s string) tarmserial.Parity {
	switch s {
	case "Even":
		return tarmserial.ParityEven
	case "Odd":
		return tarmserial.ParityOdd
	default:
		return tarmserial.ParityNone
	}
}

// parseStopBits maps the DSL's {1, 1.5, 2} to tarm/serial's StopBits,
// defaulting to Stop1, matching ParseStopBits's default case.
func parseStopBits(s string) tarmserial.StopBits {
	switch s {
	case "1.5":
		return tarmserial.Stop1Half
	case "2":
		return tarmserial.Stop2
	default:
		return tarmserial.Stop1
	}
}

func (f *Factory) createPipe(ts *String, active bool) (transport.Transport, error) {
	name := ts.Name()
	if name == "" {
		return nil, fmt.Errorf("%w: pipe name is not specified", transport.ErrInvalidArgument)
	}
	if active {
		return pipe.Dial(name, f.Exec), nil
	}
	return pipe.Listen(name, f.Exec), nil
}

func (f *Factory) createWS(ts *String, active bool) (transport.Transport, error) {
	port := ts.Port()
	if port <= 0 {
		return nil, fmt.Errorf("%w: WS port is not specified", transport.ErrInvalidArgument)
	}
	host := ts.Host()
	if active {
		scheme := "ws"
		url := fmt.Sprintf("%s://%s:%d%s", scheme, host, port, f.wsPath())
		return ws.Dial(url, f.Exec), nil
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	return ws.Listen(addr, f.wsPath(), f.Exec), nil
}

func (f *Factory) wsPath() string {
	if f.WSPath == "" {
		return "/"
	}
	return f.WSPath
}

func (f *Factory) createInprocess(ts *String, active bool) (transport.Transport, error) {
	if f.Inprocess == nil {
		return nil, fmt.Errorf("%w: no inprocess host configured", transport.ErrInvalidArgument)
	}
	name := ts.Name()
	if name == "" {
		return nil, fmt.Errorf("%w: inprocess channel name is not specified", transport.ErrInvalidArgument)
	}
	if active {
		return f.Inprocess.NewClient(name, f.Exec), nil
	}
	return f.Inprocess.NewServer(name, f.Exec), nil
}
