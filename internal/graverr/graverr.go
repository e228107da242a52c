// Package graverr holds the sentinel errors spec §7's fatal error kinds are
// detected against. It exists as its own package, rather than living next
// to internal/gravtree.Tree the way internal/dynamo/errors.go lives next to
// dynamo's own simulation types, because here the sentinels are wrapped
// from internal/splitter, internal/gconfig, and internal/distgrav as well
// as internal/gravtree itself — giving them a home any of those can import
// without internal/gravtree importing any of them back.
package graverr

import "errors"

var (
	// ErrConfiguration covers theta<=0, theta>1, minAccel<0, max_export<=0,
	// dim not in {2,3}, and the other configure()-time rejections of spec §7.
	ErrConfiguration = errors.New("gravtree: configuration error")

	// ErrProtocolMismatch covers mismatched row/accel counts exchanged
	// between ranks; unrecoverable at the layer that detects it.
	ErrProtocolMismatch = errors.New("gravtree: protocol mismatch between ranks")
)
