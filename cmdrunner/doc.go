/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package cmdrunner provides the narrow command-execution capability that
// the rest of driftmgr integrates with external tooling through.
//
// Components never spawn processes themselves; they accept a Runner. The
// cmdrunnertest subpackage provides a scripted fake so component behavior
// can be exercised without git or cruft installed.
package cmdrunner
