package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/shycats/vcam/internal/transform"
)

// Fixed payload sizes in bytes.
const (
	MatrixSize        = 16 * 8 // 16 float64
	MatrixAtTimeSize  = 17 * 8 // matrix + frame number
	CameraAllSize     = 17 * 8 // matrix + focal length
	CameraAllTimeSize = 18 * 8 // matrix + focal length + frame number
	MatrixKeySize     = 17 * 8 // matrix + frame number per key
	FlenKeySize       = 2 * 8  // focal length + frame number per key
	StreamRequestSize = 12
)

// CurrentCameraNone is the uint16 sentinel meaning "no camera selected" in
// the camera-list reply and the sole invalid value for SetCurrentCamera.
const CurrentCameraNone uint16 = 0xFFFF

// CameraListSeparator joins camera names and script labels on the wire.
const CameraListSeparator = "$"

// ErrShortPayload reports a payload smaller than its fixed layout requires.
var ErrShortPayload = errors.New("payload shorter than required")

// ReadExact reads exactly n bytes from r. A short read means the peer
// closed the socket mid-payload and the connection must be treated as dead.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read %d byte payload: %w", n, err)
	}
	return buf, nil
}

// AppendFloat64 appends v in little-endian IEEE-754 layout.
func AppendFloat64(b []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
}

// Float64At decodes the little-endian float64 starting at offset.
func Float64At(b []byte, offset int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b[offset:]))
}

// DecodeFloat64s decodes count little-endian float64 values.
func DecodeFloat64s(b []byte, count int) ([]float64, error) {
	if len(b) < count*8 {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortPayload, len(b), count*8)
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = Float64At(b, i*8)
	}
	return out, nil
}

// EncodeMatrix encodes a transform as 16 little-endian float64 values.
func EncodeMatrix(m transform.Matrix) []byte {
	b := make([]byte, 0, MatrixSize)
	for _, v := range m {
		b = AppendFloat64(b, v)
	}
	return b
}

// DecodeMatrix decodes 16 little-endian float64 values.
func DecodeMatrix(b []byte) (transform.Matrix, error) {
	var m transform.Matrix
	if len(b) < MatrixSize {
		return m, fmt.Errorf("%w: have %d bytes, need %d", ErrShortPayload, len(b), MatrixSize)
	}
	for i := range m {
		m[i] = Float64At(b, i*8)
	}
	return m, nil
}

// ServerInfoPayload builds the server-info reply payload: three uint16
// version fields followed by the platform/name string. The payload is sent
// length-prefixed.
func ServerInfoPayload(version [3]uint16, name string) []byte {
	b := make([]byte, 0, 6+len(name))
	for _, v := range version {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return append(b, name...)
}

// CameraListPayload builds the camera-list reply payload: the uint16 index
// of the currently selected camera (CurrentCameraNone when none) followed by
// the separator-joined name list. The payload is sent length-prefixed.
func CameraListPayload(current uint16, names []string) []byte {
	joined := strings.Join(names, CameraListSeparator)
	b := make([]byte, 0, 2+len(joined))
	b = binary.LittleEndian.AppendUint16(b, current)
	return append(b, joined...)
}

// ScriptLabelsPayload builds the script-label reply payload, sent
// length-prefixed.
func ScriptLabelsPayload(labels []string) []byte {
	return []byte(strings.Join(labels, CameraListSeparator))
}

// SceneStatusPayload builds the scene-status reply: current frame, range
// start, range end and focal length as four float64 values.
func SceneStatusPayload(currentFrame, rangeStart, rangeEnd, focalLength float64) []byte {
	b := make([]byte, 0, 32)
	b = AppendFloat64(b, currentFrame)
	b = AppendFloat64(b, rangeStart)
	b = AppendFloat64(b, rangeEnd)
	return AppendFloat64(b, focalLength)
}

// Has-keys bit flags. Bit 0 is the legacy single-boolean encoding and is
// set whenever either specific flag is set, so older clients keep working.
const (
	hasKeysAny       = 1 << 0
	hasKeysTransform = 1 << 1
	hasKeysFocal     = 1 << 2
)

// PackHasKeys packs the two keyframe booleans into one byte.
func PackHasKeys(transformKeys, focalKeys bool) byte {
	var b byte
	if transformKeys || focalKeys {
		b |= hasKeysAny
	}
	if transformKeys {
		b |= hasKeysTransform
	}
	if focalKeys {
		b |= hasKeysFocal
	}
	return b
}

// UnpackHasKeys reverses PackHasKeys. A byte carrying only the legacy bit
// (from a pre-flag server) is interpreted as "keys on both".
func UnpackHasKeys(b byte) (transformKeys, focalKeys bool) {
	if b&(hasKeysTransform|hasKeysFocal) != 0 {
		return b&hasKeysTransform != 0, b&hasKeysFocal != 0
	}
	legacy := b&hasKeysAny != 0
	return legacy, legacy
}

// StreamRequest is the 12-byte DoStartStreaming payload.
type StreamRequest struct {
	FPS      float32
	Bitrate  float32 // Mbit/s total target
	Port     uint16
	Opaque   bool
	Autosend bool
}

// DecodeStreamRequest decodes the DoStartStreaming payload.
func DecodeStreamRequest(b []byte) (StreamRequest, error) {
	var req StreamRequest
	if len(b) < StreamRequestSize {
		return req, fmt.Errorf("%w: have %d bytes, need %d", ErrShortPayload, len(b), StreamRequestSize)
	}
	req.FPS = math.Float32frombits(binary.LittleEndian.Uint32(b))
	req.Bitrate = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	req.Port = binary.LittleEndian.Uint16(b[8:])
	req.Opaque = b[10] != 0
	req.Autosend = b[11] != 0
	return req, nil
}

// EncodeStreamRequest encodes the DoStartStreaming payload.
func EncodeStreamRequest(req StreamRequest) []byte {
	b := make([]byte, 0, StreamRequestSize)
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(req.FPS))
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(req.Bitrate))
	b = binary.LittleEndian.AppendUint16(b, req.Port)
	b = append(b, boolByte(req.Opaque), boolByte(req.Autosend))
	return b
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// EncodeMatrixKeys encodes a keyframe batch as a uint16 count followed by
// count (matrix, frame) tuples. The parallel slices must be equal length.
func EncodeMatrixKeys(matrices []transform.Matrix, frames []float64) []byte {
	b := make([]byte, 0, 2+len(matrices)*MatrixKeySize)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(matrices)))
	for i, m := range matrices {
		for _, v := range m {
			b = AppendFloat64(b, v)
		}
		b = AppendFloat64(b, frames[i])
	}
	return b
}

// DecodeMatrixKeyPayload decodes count (matrix, frame) tuples from the
// payload that follows the uint16 count on the wire.
func DecodeMatrixKeyPayload(b []byte, count int) ([]transform.Matrix, []float64, error) {
	if len(b) < count*MatrixKeySize {
		return nil, nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortPayload, len(b), count*MatrixKeySize)
	}
	matrices := make([]transform.Matrix, count)
	frames := make([]float64, count)
	for i := 0; i < count; i++ {
		base := i * MatrixKeySize
		m, err := DecodeMatrix(b[base:])
		if err != nil {
			return nil, nil, err
		}
		matrices[i] = m
		frames[i] = Float64At(b, base+MatrixSize)
	}
	return matrices, frames, nil
}

// DecodeMatrixKeyBatch decodes a full batch including its count prefix.
func DecodeMatrixKeyBatch(b []byte) ([]transform.Matrix, []float64, error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("%w: missing key count", ErrShortPayload)
	}
	count := int(binary.LittleEndian.Uint16(b))
	return DecodeMatrixKeyPayload(b[2:], count)
}

// EncodeFlenKeys encodes a focal-length keyframe batch as a uint16 count
// followed by count (value, frame) tuples.
func EncodeFlenKeys(values, frames []float64) []byte {
	b := make([]byte, 0, 2+len(values)*FlenKeySize)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(values)))
	for i, v := range values {
		b = AppendFloat64(b, v)
		b = AppendFloat64(b, frames[i])
	}
	return b
}

// DecodeFlenKeyPayload decodes count (value, frame) tuples from the payload
// that follows the uint16 count on the wire.
func DecodeFlenKeyPayload(b []byte, count int) (values, frames []float64, err error) {
	if len(b) < count*FlenKeySize {
		return nil, nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortPayload, len(b), count*FlenKeySize)
	}
	values = make([]float64, count)
	frames = make([]float64, count)
	for i := 0; i < count; i++ {
		values[i] = Float64At(b, i*FlenKeySize)
		frames[i] = Float64At(b, i*FlenKeySize+8)
	}
	return values, frames, nil
}

// DecodeFlenKeyBatch decodes a full batch including its count prefix.
func DecodeFlenKeyBatch(b []byte) (values, frames []float64, err error) {
	if len(b) < 2 {
		return nil, nil, fmt.Errorf("%w: missing key count", ErrShortPayload)
	}
	count := int(binary.LittleEndian.Uint16(b))
	return DecodeFlenKeyPayload(b[2:], count)
}
