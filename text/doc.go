// Package text provides the font side of the cell grid renderer: parsed
// font faces, the reference-counted face registry whose handles key the glyph
// cache, an outline rasterizer that turns glyph indices into atlas-ready
// bitmaps, and a small shaping helper that turns lines of text into glyph
// runs.
//
// Faces are identified by [FaceHandle] values issued by a [Registry]. A handle
// stays valid while the registry holds at least one reference for it; once the
// last reference is released the slot is recycled under a new generation, so
// a stale handle can never alias a different face.
//
// Rasterization uses golang.org/x/image/font/sfnt for outlines and
// golang.org/x/image/vector for coverage. Shaping uses go-text/typesetting.
package text
