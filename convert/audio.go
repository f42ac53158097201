package convert

// fullScale is the int16 full-scale divisor for normalized float
// conversion. Dividing by 32768 keeps +32767 just below +1.0.
const fullScale = 32768.0

// Int16ToFloat32 converts int16 samples to normalized float32 in [-1, 1],
// applying gain before clamping. dst is reused when it has sufficient
// capacity; the converted slice is returned.
func Int16ToFloat32(dst []float32, src []int16, gain float64) []float32 {
	if cap(dst) < len(src) {
		dst = make([]float32, len(src))
	}
	dst = dst[:len(src)]
	for i, s := range src {
		v := float64(s) / fullScale * gain
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		dst[i] = float32(v)
	}
	return dst
}

// Float32ToInt16 converts normalized float32 samples to int16, applying
// gain and clamping to the representable range so overdriven input saturates
// instead of wrapping. dst is reused when it has sufficient capacity.
func Float32ToInt16(dst []int16, src []float32, gain float64) []int16 {
	if cap(dst) < len(src) {
		dst = make([]int16, len(src))
	}
	dst = dst[:len(src)]
	for i, s := range src {
		v := float64(s) * gain * fullScale
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		dst[i] = int16(v)
	}
	return dst
}

// ApplyGain scales int16 samples in place, clamping to the int16 range.
func ApplyGain(samples []int16, gain float64) {
	if gain == 1.0 {
		return
	}
	for i, s := range samples {
		v := float64(s) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		samples[i] = int16(v)
	}
}

// MonoToStereo duplicates each mono sample into both output channels.
// dst is reused when it has sufficient capacity.
func MonoToStereo(dst, src []int16) []int16 {
	need := len(src) * 2
	if cap(dst) < need {
		dst = make([]int16, need)
	}
	dst = dst[:need]
	for i, s := range src {
		dst[i*2] = s
		dst[i*2+1] = s
	}
	return dst
}
