// Copyright (c) 2025 The Wordpool developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sampleconfig

import (
	_ "embed"
)

// sampleWordpooldConf is a string containing the commented example
// config for wordpoold.
//
//go:embed sample-wordpoold.conf
var sampleWordpooldConf string

// Wordpoold returns a string containing the commented example config
// for wordpoold.
func Wordpoold() string {
	return sampleWordpooldConf
}
