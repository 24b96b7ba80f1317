// Package cos provides common low-level types and utilities shared across
// plumcast's packages.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"os"
	"sync"
	ratomic "sync/atomic"

	"github.com/aistore-labs/plumcast/cmn/debug"
	"github.com/aistore-labs/plumcast/cmn/nlog"
)

// Errs collects up to maxErrs distinct errors, deduplicated by message.
// Used during shutdown fan-out, where a node's farewell Disconnect may
// fail against several peers at once and the caller wants one combined
// error rather than only the first.
type Errs struct {
	errs []error
	cnt  int64
	mu   sync.Mutex
}

const maxErrs = 4

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			e.mu.Unlock()
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		ratomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
	e.mu.Unlock()
}

func (e *Errs) Cnt() int { return int(ratomic.LoadInt64(&e.cnt)) }

func (e *Errs) JoinErr() (cnt int, err error) {
	if cnt = e.Cnt(); cnt > 0 {
		e.mu.Lock()
		err = errors.Join(e.errs...)
		e.mu.Unlock()
	}
	return
}

// Error renders the first collected error plus a count of the rest, so
// callers that only want a single error value still see that more than
// one peer failed.
func (e *Errs) Error() (s string) {
	var (
		err error
		cnt = e.Cnt()
	)
	if cnt == 0 {
		return
	}
	e.mu.Lock()
	if cnt = len(e.errs); cnt > 0 {
		err = e.errs[0]
	}
	e.mu.Unlock()
	if err == nil {
		return
	}
	if cnt > 1 {
		suffix := "s"
		if cnt-1 == 1 {
			suffix = ""
		}
		err = fmt.Errorf("%v (and %d more error%s)", err, cnt-1, suffix)
	}
	s = err.Error()
	return
}

const fatalPrefix = "FATAL ERROR: "

// ExitLogf logs a fatal message and terminates the process. Used only by
// embedders that choose to treat an Error.Other from Service.Run as
// unrecoverable; the library itself never calls this.
func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	nlog.ErrorDepth(1, msg)
	nlog.Flush(true)
	_exit(msg)
}

func _exit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
