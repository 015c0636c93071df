//go:build tools
// +build tools

// Package tools tracks the mockgen version used by go generate.
package fitpulse_chat

import (
	_ "go.uber.org/mock/mockgen"
)
