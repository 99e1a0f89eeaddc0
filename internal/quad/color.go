package quad

// Pack packs 8-bit premultiplied channels as 0xAABBGGRR, the byte order the
// shader unpacks with unpack4x8unorm.
func Pack(r, g, b, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24
}

// Unpack is the inverse of Pack.
func Unpack(c uint32) (r, g, b, a uint8) {
	return uint8(c), uint8(c >> 8), uint8(c >> 16), uint8(c >> 24)
}

// Premultiply converts a straight-alpha 0xAABBGGRR color to premultiplied.
func Premultiply(c uint32) uint32 {
	r, g, b, a := Unpack(c)
	if a == 0xFF {
		return c
	}
	mul := func(v uint8) uint8 {
		return uint8((uint32(v)*uint32(a) + 127) / 255)
	}
	return Pack(mul(r), mul(g), mul(b), a)
}

// Over composites the premultiplied src over dst (source-over).
func Over(dst, src uint32) uint32 {
	sr, sg, sb, sa := Unpack(src)
	dr, dg, db, da := Unpack(dst)
	inv := 255 - uint32(sa)
	ch := func(s, d uint8) uint8 {
		v := uint32(s) + (uint32(d)*inv+127)/255
		if v > 255 {
			v = 255
		}
		return uint8(v)
	}
	return Pack(ch(sr, dr), ch(sg, dg), ch(sb, db), ch(sa, da))
}
