// Package cellgrid renders a terminal's visible character grid with the GPU.
//
// # Overview
//
// A host (terminal emulator, multiplexer, remote viewer) shapes its visible
// rows into a [Payload] and hands it to [Renderer.Render] once per frame.
// The renderer turns the payload into a single stream of instanced quads:
//
//  1. the background, one quad sampling a per-cell color bitmap
//  2. text, one quad per visible glyph, resolved through a glyph atlas
//  3. gridlines (underline, strikethrough, box edges, hyperlinks)
//  4. the cursor
//  5. the selection
//
// and draws the stream with one pipeline, one bind group and one indexed
// instanced draw call. Later quads blend over earlier ones, so the list
// above is also the paint order.
//
// # Quick Start
//
//	registry := text.NewRegistry()
//	face, _ := text.ParseFace(gomono.TTF, 16)
//	handle := registry.Register(face)
//
//	out := present.NewOffscreen(device, queue, gputypes.TextureFormatBGRA8Unorm)
//	r, err := cellgrid.NewRenderer(device, queue, out, cellgrid.WithRegistry(registry))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	err = r.Render(ctx, &cellgrid.Payload{
//	    Generations: cellgrid.Generations{Settings: 1, Font: 1, Misc: 1},
//	    Settings:    &settings,
//	    Rows:        rows,
//	})
//
// # Generations
//
// The payload carries three counters. The renderer remembers, for every
// resource, the counter value it was last built from and rebuilds it only
// when the value differs. Settings rebuilds the presentation target and
// shader constants; Font clears the glyph atlas; Misc re-uploads the
// background bitmap.
//
// # Error Handling
//
// A full glyph atlas is cleared and the frame retried once. Every other
// failure ends the frame: GPU errors tear the device resources down so
// the next Render recreates them, and [ErrDeviceLost] tells the host that
// the device itself has to be replaced.
//
// # Logging
//
// cellgrid logs nothing by default. Call [SetLogger] to route diagnostics
// to a [log/slog] logger.
package cellgrid
