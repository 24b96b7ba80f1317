// Package nlog - severity-tagged line logger derived from aistore's; writes
// each line synchronously, with no buffering, timestamps or rotation
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

func InfoDepth(depth int, args ...any)    { log(sevInfo, depth, "", args...) }
func Infoln(args ...any)                  { log(sevInfo, 0, "", args...) }
func Infof(format string, args ...any)    { log(sevInfo, 0, format, args...) }
func WarningDepth(depth int, args ...any) { log(sevWarn, depth, "", args...) }
func Warningln(args ...any)               { log(sevWarn, 0, "", args...) }
func Warningf(format string, args ...any) { log(sevWarn, 0, format, args...) }
func ErrorDepth(depth int, args ...any)   { log(sevErr, depth, "", args...) }
func Errorln(args ...any)                 { log(sevErr, 0, "", args...) }
func Errorf(format string, args ...any)   { log(sevErr, 0, format, args...) }

var title string

// SetTitle records a short component name, e.g. a node's local id. The
// name is not written into log lines: unlike aistore's SetTitle (written
// once into a fresh log file's header), plumcast has no file header to
// stamp, so this is a placeholder hook kept for call-site parity;
// prefixing is left to SetOutput callers that want it.
func SetTitle(s string) { title = s }

// Flush is kept for call-site compatibility with aistore's nlog.Flush;
// this logger writes synchronously to `out` so there is nothing buffered
// to force out. The `exit` argument is accepted and ignored.
func Flush(_ ...bool) {}

// Lines reports how many lines have been logged so far, for tests.
func Lines() int64 { return written.Load() }
