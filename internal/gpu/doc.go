// Package gpu owns the device-side state of the cell grid renderer.
//
// Resources holds everything created from a hal.Device: the grid shader
// module, the two render pipelines that share it, the quad index buffer,
// the uniform buffer, the instance buffer, the glyph atlas and background
// textures with their samplers, and the optional post-processing pass.
//
// # Frame encoding
//
// A frame is one or more flushes followed by End:
//
//	BeginFrame(target, clear)
//	Flush(batch)   // render pass 1, LoadOpClear
//	Flush(batch)   // render pass 2, LoadOpLoad (after an atlas reset)
//	End()          // optional post-process pass into target
//
// Each flush uploads the batch into the instance buffer and records one
// render pass: the batch's copy prefix is drawn with the replace pipeline,
// the remainder with premultiplied source-over.
//
// # Bind group 0
//
//	binding 0  uniform GridConstants
//	binding 1  atlas_texture       (RGBA8Unorm)
//	binding 2  atlas_sampler       (nearest, clamp)
//	binding 3  background_texture  (RGBA8Unorm, one texel per cell)
//	binding 4  background_sampler  (nearest, mirror repeat)
package gpu
