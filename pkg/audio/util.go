package audio

// Downmix folds interleaved samples with the given channel count into mono by
// averaging the channels of each frame. Mono input is copied.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(interleaved))
		copy(out, interleaved)
		return out
	}
	n := len(interleaved) / channels
	dst := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		dst[i] = sum / float32(channels)
	}
	return dst
}

// Average mixes equally long mono slices into dst by averaging them sample by
// sample. dst must be at least as long as the shortest input.
func Average(dst []float32, inputs ...[]float32) {
	if len(inputs) == 0 {
		return
	}
	scale := 1 / float32(len(inputs))
	for i := range dst {
		var sum float32
		for _, in := range inputs {
			if i < len(in) {
				sum += in[i]
			}
		}
		dst[i] = sum * scale
	}
}
