// Package atlas implements the rectangle packer that places rasterized glyph
// bitmaps inside a fixed-size atlas texture.
//
// The packer is append-only within an epoch. Regions are never freed
// individually; [Packer.Reset] ends the epoch and makes the whole area
// available again. Placement is deterministic: the same sequence of
// requests always produces the same rectangles.
package atlas
