package audio

// Format constants shared by the capture graph and the transport layer.
const (
	// Capture output.
	DefaultSampleRate = 16_000 // Hz
	Channels          = 1      // mono
	FrameSize         = 4096   // samples per processing callback
	BytesPerSample    = 2      // 16-bit PCM
	FrameBytes        = FrameSize * BytesPerSample

	// OpenAI Realtime input.
	RealtimeSampleRate = 24_000 // Hz
)

// EncodedFrameLen is the length of the base64 text produced for a frame of n
// samples.
func EncodedFrameLen(n int) int {
	return (n*BytesPerSample + 2) / 3 * 4
}
