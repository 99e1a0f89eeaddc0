// Package config loads renderer settings from TOML or YAML files and keeps
// them current while the file is edited.
//
// A settings file only names what differs from cellgrid.DefaultSettings:
//
//	dpi = 144
//	shader = "crt.wgsl"
//
//	[cell]
//	width = 9
//	height = 18
//
//	[text]
//	antialiasing = "cleartype"
//	gamma = 2.2
//
//	[colors]
//	background = "#1e1e2e"
//	selection = "#ffffff40"
//
// A Source pairs the settings with the generation counters of a
// cellgrid.Payload. Every reload that changes the settings bumps
// Generations.Settings; changes to the DPI, cell size, font metrics or
// antialiasing also bump Generations.Font so that cached glyphs are
// rasterized again.
package config
