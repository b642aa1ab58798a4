// Package plan computes reconciliation plans: the ordered list of actions
// that makes a bucket match a local site tree.
//
// Planning is a pure function of its inputs. Given the same scan and the
// same inventory it always produces the same plan, so a plan can be
// printed for review (dry-run) and then executed without re-diffing.
package plan

import (
	"sort"

	"github.com/3leaps/weblift/pkg/inventory"
	"github.com/3leaps/weblift/pkg/scanner"
)

// ActionType discriminates reconciliation actions.
type ActionType string

const (
	// Upload transfers a local file to the bucket (create or overwrite).
	Upload ActionType = "upload"

	// Skip records that the remote copy is already current.
	Skip ActionType = "skip"

	// Delete removes a remote object with no local counterpart.
	// Only emitted when pruning is requested.
	Delete ActionType = "delete"
)

// Action is one step of a reconciliation plan.
type Action struct {
	// Type is the action discriminator.
	Type ActionType

	// Key is the bucket key the action applies to.
	Key string

	// Local carries the source file for Upload actions; nil otherwise.
	Local *scanner.LocalObject
}

// Plan is an ordered sequence of actions. It is immutable after Build:
// Upload/Skip actions appear first in scan order, Deletes are appended
// last so a replace-and-prune run never removes a key before the new
// content has been dispatched.
type Plan struct {
	Actions []Action
}

// Build computes the reconciliation plan.
//
// For each local object: missing remotely or fingerprint differs means
// Upload, exact fingerprint match means Skip. Fingerprint comparison is
// exact string equality; a provider fingerprint in any unrecognized form
// (different multipart chunking, encryption-rewritten tags) compares
// unequal and forces a re-upload. That bias is deliberate: a redundant
// upload is cheap, a silently stale object is not.
//
// When prune is set, remote keys with no local counterpart become Delete
// actions, appended after all Upload/Skip actions in lexical key order
// of the remaining inventory map iteration (sorted for determinism).
//
// The plan never contains two actions for the same key. Should the scan
// ever produce duplicate keys, the first occurrence wins.
func Build(locals []scanner.LocalObject, remotes map[string]inventory.RemoteObject, prune bool) *Plan {
	p := &Plan{Actions: make([]Action, 0, len(locals))}

	planned := make(map[string]bool, len(locals))
	for i := range locals {
		local := &locals[i]
		if planned[local.Key] {
			continue
		}
		planned[local.Key] = true

		remote, exists := remotes[local.Key]
		if exists && fingerprintsMatch(local.ETag, remote.ETag) {
			p.Actions = append(p.Actions, Action{Type: Skip, Key: local.Key})
			continue
		}
		p.Actions = append(p.Actions, Action{Type: Upload, Key: local.Key, Local: local})
	}

	if prune {
		extras := make([]string, 0)
		for key := range remotes {
			if !planned[key] {
				extras = append(extras, key)
			}
		}
		sort.Strings(extras)
		for _, key := range extras {
			p.Actions = append(p.Actions, Action{Type: Delete, Key: key})
		}
	}

	return p
}

// fingerprintsMatch reports whether the locally computed ETag and the
// provider-supplied one describe the same content. Only an exact match
// counts; anything else (including unrecognized formats) forces re-upload.
func fingerprintsMatch(local, remote string) bool {
	return local != "" && local == remote
}

// Counts returns the number of actions of each type.
func (p *Plan) Counts() (uploads, skips, deletes int) {
	for _, a := range p.Actions {
		switch a.Type {
		case Upload:
			uploads++
		case Skip:
			skips++
		case Delete:
			deletes++
		}
	}
	return
}

// AllSkips reports whether the plan has no work to do.
func (p *Plan) AllSkips() bool {
	for _, a := range p.Actions {
		if a.Type != Skip {
			return false
		}
	}
	return true
}
