//go:build tools

// This file exists only to record a go:generate tool dependency in go.mod;
// it is never compiled into the kernel itself. See SPEC_FULL.md's DOMAIN
// STACK section.
package defs

import (
	_ "golang.org/x/tools/cmd/stringer"
)
