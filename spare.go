package spinand

// encodeSpareStandard is the default spare-area layout: byte 0 is reserved
// for the bad-block marker, the file-system tag follows, then the ECC bytes.
// Upper engines with their own on-flash layout install a SpareEncoder via
// Config.MakeSpare instead.
func encodeSpareStandard(spare, tag, ecc []byte) {
	off := 1 // skip the bad-block marker byte
	off += copy(spare[off:], tag)
	copy(spare[off:], ecc)
}
