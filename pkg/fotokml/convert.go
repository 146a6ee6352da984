package fotokml

// toDecimal converts a degree/minute/second triple plus a hemisphere letter
// into signed decimal degrees. Values are negated for the southern and
// western hemispheres. No bounds validation happens here; an out-of-range
// coordinate simply geocodes to an unknown place downstream.
func toDecimal(deg, min, sec float64, ref string) float64 {
	dd := deg + min/60 + sec/3600
	if ref == "W" || ref == "S" {
		dd = -dd
	}
	return dd
}

// decimal resolves one metadata axis to decimal degrees.
func (d DMS) decimal(ref string) float64 {
	return toDecimal(d.Deg, d.Min, d.Sec, ref)
}
