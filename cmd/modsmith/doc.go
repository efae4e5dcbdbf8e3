// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modsmith.
//
// This package implements the Cobra command hierarchy: the root command and
// subcommands for listing, inspecting, installing, enabling and disabling
// mods, watching the mods directory, and managing configuration.
package cmd
