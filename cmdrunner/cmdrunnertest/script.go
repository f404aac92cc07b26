/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package cmdrunnertest provides a scripted cmdrunner.Runner for tests.
package cmdrunnertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/templatetools/driftmgr/cmdrunner"
)

// Response is what the script returns for a matched command line.
type Response struct {
	Result cmdrunner.Result
	Err    error
}

// Call records one invocation observed by the script.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// Script is a cmdrunner.Runner that answers from a canned table keyed on the
// command line (name and args joined with spaces, directory ignored). Every
// invocation is recorded so tests can assert which commands ran and which
// did not.
type Script struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
}

// New constructs an empty Script. Unmatched commands succeed with an empty
// Result, which keeps happy-path scripts short.
func New() *Script {
	return &Script{responses: map[string]Response{}}
}

// On registers the response for a command line, e.g.
// s.On("cruft check", cmdrunner.Result{Status: 1}).
func (s *Script) On(commandLine string, res cmdrunner.Result) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[commandLine] = Response{Result: res}
	return s
}

// OnError registers a spawn-level failure for a command line.
func (s *Script) OnError(commandLine string, err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[commandLine] = Response{Err: err}
	return s
}

// Run implements cmdrunner.Runner.
func (s *Script) Run(_ context.Context, dir string, name string, args ...string) (cmdrunner.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Dir: dir, Name: name, Args: args})

	line := commandLine(name, args)
	if resp, ok := s.responses[line]; ok {
		return resp.Result, resp.Err
	}

	// Prefix matches let scripts ignore variable arguments such as branch
	// names and generated commit messages.
	for key, resp := range s.responses {
		if strings.HasPrefix(line, key) {
			return resp.Result, resp.Err
		}
	}

	return cmdrunner.Result{}, nil
}

// Calls returns a copy of the observed invocations.
func (s *Script) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Invoked reports whether any observed command line starts with prefix.
func (s *Script) Invoked(prefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if strings.HasPrefix(commandLine(c.Name, c.Args), prefix) {
			return true
		}
	}
	return false
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return fmt.Sprintf("%s %s", name, strings.Join(args, " "))
}
