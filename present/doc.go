// Package present implements the presentation side of the cell grid
// renderer: where a frame is drawn and when the next one may start.
//
// Two presenters are provided. [Surface] drives a window surface through
// the wgpu HAL (configure, acquire, present). [Offscreen] renders into a
// device texture and is used by headless hosts, captures and tests.
//
// Both presenters limit the number of frames the GPU may have queued with a
// [Pacer]. The renderer reports the queue submission index of every frame
// through TrackSubmission; Ready reports, without blocking, whether another
// frame may be started.
package present
