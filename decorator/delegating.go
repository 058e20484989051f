// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package decorator holds small Transport decorators that each add one
// cross-cutting concern (gating, interception, write ordering, message
// dispatch) without changing the child's framing or substrate.
package decorator

import (
	transport "code.hybscloud.com/transport"
)

// Delegating forwards every transport.Transport method to an embedded
// child. On its own it's a no-op wrapper; its purpose is to be embedded
// by a type that overrides the one or two methods it actually needs to
// change, the way the original's DelegatingTransport exists purely as a
// base class for that kind of narrow override.
type Delegating struct {
	transport.Transport
}

// NewDelegating wraps child. The returned value satisfies
// transport.Transport by forwarding to child; embed it in a larger
// struct to override individual methods.
func NewDelegating(child transport.Transport) Delegating {
	return Delegating{Transport: child}
}

var _ transport.Transport = Delegating{}
