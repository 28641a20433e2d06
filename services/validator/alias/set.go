// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package alias reads externally computed alias sets and resolves their
// members to IR identities.
//
// Two dump grammars are supported: the SVF brace form, one set per line
// ({'@g', 'fn::%x'}), and the LLVM -print-alias-sets dump. The package
// performs no alias analysis of its own.
package alias

import (
	"cmp"
	"slices"
	"strings"
)

// Binder names an aliased value: a global, or a local of a function.
type Binder struct {
	// Function is empty for globals.
	Function string
	Name     string
}

// GlobalBinder returns the binder @name.
func GlobalBinder(name string) Binder { return Binder{Name: name} }

// LocalBinder returns the binder fn::%name.
func LocalBinder(fn, name string) Binder { return Binder{Function: fn, Name: name} }

// IsGlobal reports whether b names a global.
func (b Binder) IsGlobal() bool { return b.Function == "" }

// String renders b in SVF syntax.
func (b Binder) String() string {
	if b.IsGlobal() {
		return "@" + b.Name
	}
	return b.Function + "::%" + b.Name
}

// Compare orders globals before locals, then by function and name.
func (b Binder) Compare(o Binder) int {
	if c := cmp.Compare(b.Function, o.Function); c != 0 {
		return c
	}
	return cmp.Compare(b.Name, o.Name)
}

// AliasStatus is the strength of an alias set. Larger values win a merge.
type AliasStatus int

const (
	NoAlias AliasStatus = iota
	MayAlias
	MustAlias
)

// String returns the status in dump syntax.
func (s AliasStatus) String() string {
	switch s {
	case NoAlias:
		return "no alias"
	case MustAlias:
		return "must alias"
	default:
		return "may alias"
	}
}

// Merge returns the stronger of s and o: MustAlias > MayAlias > NoAlias.
func (s AliasStatus) Merge(o AliasStatus) AliasStatus { return max(s, o) }

// ModRefStatus is the access mode of an alias set. Larger values win a
// merge.
type ModRefStatus int

const (
	NoAccess ModRefStatus = iota
	Ref
	ModRef
	Mod
)

// String returns the status in dump syntax.
func (s ModRefStatus) String() string {
	switch s {
	case NoAccess:
		return "No access"
	case Ref:
		return "Ref"
	case Mod:
		return "Mod"
	default:
		return "Mod/Ref"
	}
}

// Merge returns the stronger of s and o: Mod > ModRef > Ref > NoAccess.
func (s ModRefStatus) Merge(o ModRefStatus) ModRefStatus { return max(s, o) }

func parseAliasStatus(s string) AliasStatus {
	switch strings.TrimSpace(s) {
	case "must alias":
		return MustAlias
	case "no alias":
		return NoAlias
	default:
		return MayAlias
	}
}

// parseModRef reads the access token at the start of s and returns the
// remaining text.
func parseModRef(s string) (ModRefStatus, string) {
	s = strings.TrimSpace(s)
	for _, tok := range []struct {
		text   string
		status ModRefStatus
	}{
		{"Mod/Ref", ModRef},
		{"ModRef", ModRef},
		{"Mod", Mod},
		{"Ref", Ref},
		{"No access", NoAccess},
	} {
		if strings.HasPrefix(s, tok.text) {
			return tok.status, strings.TrimSpace(s[len(tok.text):])
		}
	}
	return ModRef, s
}

// Set is one alias set.
type Set struct {
	// ID identifies the set within its dump.
	ID string

	// Binders are sorted and unique.
	Binders []Binder

	Alias  AliasStatus
	ModRef ModRefStatus

	// Line is where the set was read.
	Line int
}

// NewSet builds a set with sorted, deduplicated binders.
func NewSet(id string, binders ...Binder) *Set {
	s := &Set{ID: id, Alias: MayAlias, ModRef: ModRef}
	s.add(binders...)
	return s
}

func (s *Set) add(binders ...Binder) {
	s.Binders = append(s.Binders, binders...)
	slices.SortFunc(s.Binders, Binder.Compare)
	s.Binders = slices.Compact(s.Binders)
}

// Contains reports whether b is a member of s.
func (s *Set) Contains(b Binder) bool {
	_, found := slices.BinarySearchFunc(s.Binders, b, Binder.Compare)
	return found
}

// Merge combines sets that share a binder.
//
// Description:
//
//	Sets are processed in order. A set that overlaps one or more earlier
//	merged sets absorbs them: binders are unioned and statuses merged with
//	AliasStatus.Merge and ModRefStatus.Merge. The merged set keeps the ID
//	and line of the set being added. Empty sets are discarded. A merged
//	set moves to the end of the result.
//
// Outputs:
//
//	[]*Set - Disjoint sets. Inputs are not modified.
func Merge(sets []*Set) []*Set {
	var out []*Set
	owner := make(map[Binder]*Set)

	for _, in := range sets {
		if len(in.Binders) == 0 {
			continue
		}
		merged := &Set{ID: in.ID, Alias: in.Alias, ModRef: in.ModRef, Line: in.Line}
		merged.add(in.Binders...)

		absorbed := make(map[*Set]bool)
		for _, b := range in.Binders {
			prev, ok := owner[b]
			if !ok || absorbed[prev] {
				continue
			}
			absorbed[prev] = true
			merged.add(prev.Binders...)
			merged.Alias = merged.Alias.Merge(prev.Alias)
			merged.ModRef = merged.ModRef.Merge(prev.ModRef)
		}

		if len(absorbed) > 0 {
			out = slices.DeleteFunc(out, func(s *Set) bool { return absorbed[s] })
		}
		for _, b := range merged.Binders {
			owner[b] = merged
		}
		out = append(out, merged)
	}
	return out
}
