/*
Copyright 2026 The driftmgr Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package driftmanager orchestrates template-drift processing across the
// repositories in a registry: acquire a workspace, classify its drift,
// apply the update when policy allows, and fold each step into one outcome
// per repository. Repositories are independent; a failure in one never
// affects another.
package driftmanager
