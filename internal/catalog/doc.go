// Package catalog holds the ordered list of terminal emulators to test.
//
// Each entry is a launch template: the emulator's executable plus the flags
// that make it run a trailing command, for example
//
//	xterm -e <command...>
//
// The built-in list is returned by Default. A different list can be loaded
// from a TOML file:
//
//	[[terminal]]
//	name = "foot"
//	prefix = ["foot", "--"]
//
//	[[terminal]]
//	name = "contour"
//	prefix = ["contour", "working-directory", "{{cwd}}", "--"]
//
// Tables are run in the order they appear in the file.
package catalog
