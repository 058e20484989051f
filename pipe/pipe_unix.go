// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !windows

package pipe

import (
	"context"
	"net"
	"os"
)

// dialPipe and listenPipe back the pipe substrate with a Unix domain
// socket on every non-Windows platform: the closest portable analogue
// to a Windows named pipe (byte-stream, filesystem-namespaced,
// connection-oriented).
func dialPipe(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}

func listenPipe(path string) (net.Listener, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &unixListener{UnixListener: ln.(*net.UnixListener), path: path}, nil
}

// unixListener removes the socket file on Close so a restarted process
// doesn't fail to bind with "address already in use".
type unixListener struct {
	*net.UnixListener
	path string
}

func (l *unixListener) Close() error {
	err := l.UnixListener.Close()
	_ = os.Remove(l.path)
	return err
}
