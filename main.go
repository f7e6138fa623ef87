// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/quiosk/locator/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
