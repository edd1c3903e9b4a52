package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// BytesPerSample is the wire sample width: 16-bit signed little-endian PCM.
const BytesPerSample = 2

// Float32ToPCM16 converts 32-bit float samples to 16-bit signed
// little-endian PCM. Samples are clamped to [-1, 1]; negative values scale
// by 32768 and positive values by 32767 so both rails are reachable.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat32 converts 16-bit signed little-endian PCM bytes to float
// samples in [-1, 1]. A trailing odd byte is ignored.
func PCM16ToFloat32(data []byte) []float32 {
	n := len(data) / BytesPerSample
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out
}

// Samples reinterprets s16le PCM bytes as int16 samples.
func Samples(data []byte) []int16 {
	n := len(data) / BytesPerSample
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// Duration returns the playback duration of s16le mono PCM at the given rate.
func Duration(pcmBytes int, sampleRate int) time.Duration {
	if sampleRate <= 0 || pcmBytes <= 0 {
		return 0
	}
	samples := pcmBytes / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// RMS calculates the root mean square energy of int16 samples. Used for
// silence detection.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
