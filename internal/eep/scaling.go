package eep

// Temperature and set-point ranges of the A5-10-xx room operating panels.
const (
	tempMin = 0.0
	tempMax = 40.0
)

// unsignedRaw widens a data byte read as a signed quantity back into 0..255.
func unsignedRaw(b byte) float64 {
	r := float64(int8(b))
	if r < 0 {
		r = -r + 2*(128+r)
	}
	return r
}

// ScaleTemperature converts a raw DB1 byte to °C. The A5-10 temperature
// signal is inverted: 0xFF is the low end of the range.
func ScaleTemperature(b byte) float64 {
	r := unsignedRaw(b)
	return (r-255)*(-tempMax)/255 + tempMin
}

// ScaleSetPoint converts a raw DB2 byte to the set-point value.
func ScaleSetPoint(b byte) float64 {
	r := unsignedRaw(b)
	return (r/255)*(tempMax-tempMin) - tempMin
}
