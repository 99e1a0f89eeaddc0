package quad

// minCapacity is the first allocation size of a Batch, in instances.
const minCapacity = 64

// Batch accumulates the instances of one frame (or of one flush within a
// frame) in submission order.
//
// The encoded byte stream is kept alongside the instances and grows by
// doubling, so appending is amortized O(1) and Bytes never re-encodes.
type Batch struct {
	instances []Instance
	data      []byte

	// copyPrefix counts leading instances drawn with the copy blend.
	copyPrefix int
	grows      int
}

// NewBatch creates a batch with room for capacity instances.
func NewBatch(capacity int) *Batch {
	b := &Batch{}
	b.reserve(max(capacity, minCapacity))
	return b
}

// Append adds q after every instance appended so far.
func (b *Batch) Append(q Instance) {
	n := len(b.instances)
	if n == cap(b.instances) {
		b.reserve(cap(b.instances) * 2)
	}
	b.instances = append(b.instances, q)
	b.data = b.data[:(n+1)*InstanceSize]
	q.Encode(b.data[n*InstanceSize:])
}

// AppendQuad is shorthand for Append with the fields spelled out.
func (b *Batch) AppendQuad(pos, tex [4]float32, color uint32, shading ShadingType) {
	b.Append(Instance{Position: pos, TexCoord: tex, Color: color, Shading: shading})
}

// AppendOpaque appends a quad that replaces the destination instead of
// blending over it. Opaque quads must precede every blended quad.
func (b *Batch) AppendOpaque(q Instance) {
	if b.copyPrefix != len(b.instances) {
		panic("quad: opaque instance appended after blended instances")
	}
	b.Append(q)
	b.copyPrefix++
}

// reserve grows the backing arrays to hold n instances.
func (b *Batch) reserve(n int) {
	if n <= cap(b.instances) {
		return
	}
	inst := make([]Instance, len(b.instances), n)
	copy(inst, b.instances)
	data := make([]byte, len(b.data), n*InstanceSize)
	copy(data, b.data)
	if cap(b.instances) > 0 {
		b.grows++
	}
	b.instances, b.data = inst, data
}

// Len returns the number of instances.
func (b *Batch) Len() int { return len(b.instances) }

// Cap returns the number of instances that fit without growing.
func (b *Batch) Cap() int { return cap(b.instances) }

// CopyPrefix returns the number of leading opaque instances.
func (b *Batch) CopyPrefix() int { return b.copyPrefix }

// Grows returns how many times the backing storage was reallocated.
func (b *Batch) Grows() int { return b.grows }

// Instances returns the appended instances. The slice is only valid until
// the next Append or Reset.
func (b *Batch) Instances() []Instance { return b.instances }

// Bytes returns the encoded instance stream, InstanceSize bytes per instance.
func (b *Batch) Bytes() []byte { return b.data }

// Reset empties the batch, keeping its storage.
func (b *Batch) Reset() {
	b.instances = b.instances[:0]
	b.data = b.data[:0]
	b.copyPrefix = 0
}
