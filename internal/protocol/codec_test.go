package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/shycats/vcam/internal/transform"
)

func TestOpcodeCategories(t *testing.T) {
	tests := []struct {
		op   Opcode
		want Category
	}{
		{AskServerInfo, CategoryAsk},
		{AskCameraHasKeys, CategoryAsk},
		{SetPlaybackRange, CategorySet},
		{SetCameraFlenKeys, CategorySet},
		{DoStartStreaming, CategoryDo},
		{DoExecuteScript, CategoryDo},
		{ErrMissingCamera, CategoryErr},
		{ErrExecuteScript, CategoryErr},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			if got := tt.op.Category(); got != tt.want {
				t.Errorf("%v.Category() = %v, want %v", tt.op, got, tt.want)
			}
		})
	}
}

func TestPackHasKeysLegacyLaw(t *testing.T) {
	// Bit 0 must be set iff transform-keys OR focal-keys is true, and the
	// full encoding must uniquely reconstruct the pair.
	for _, transformKeys := range []bool{false, true} {
		for _, focalKeys := range []bool{false, true} {
			b := PackHasKeys(transformKeys, focalKeys)

			wantLegacy := transformKeys || focalKeys
			if gotLegacy := b&1 != 0; gotLegacy != wantLegacy {
				t.Errorf("PackHasKeys(%v, %v) legacy bit = %v, want %v",
					transformKeys, focalKeys, gotLegacy, wantLegacy)
			}

			gotT, gotF := UnpackHasKeys(b)
			if gotT != transformKeys || gotF != focalKeys {
				t.Errorf("UnpackHasKeys(PackHasKeys(%v, %v)) = (%v, %v)",
					transformKeys, focalKeys, gotT, gotF)
			}
		}
	}
}

func TestUnpackHasKeysLegacyByte(t *testing.T) {
	// A pre-flag server only ever sets bit 0.
	gotT, gotF := UnpackHasKeys(0x01)
	if !gotT || !gotF {
		t.Errorf("UnpackHasKeys(0x01) = (%v, %v), want (true, true)", gotT, gotF)
	}
	gotT, gotF = UnpackHasKeys(0x00)
	if gotT || gotF {
		t.Errorf("UnpackHasKeys(0x00) = (%v, %v), want (false, false)", gotT, gotF)
	}
}

func testMatrix(seed float64) transform.Matrix {
	var m transform.Matrix
	for i := range m {
		m[i] = seed + float64(i)*0.25
	}
	return m
}

func TestMatrixKeyBatchRoundTrip(t *testing.T) {
	for _, count := range []int{0, 1, 99} {
		matrices := make([]transform.Matrix, count)
		frames := make([]float64, count)
		for i := range matrices {
			matrices[i] = testMatrix(float64(i))
			frames[i] = float64(100 - i) // caller-supplied order, not time-ordered
		}

		encoded := EncodeMatrixKeys(matrices, frames)
		if want := 2 + count*MatrixKeySize; len(encoded) != want {
			t.Fatalf("count=%d: encoded length = %d, want %d", count, len(encoded), want)
		}

		gotMatrices, gotFrames, err := DecodeMatrixKeyBatch(encoded)
		if err != nil {
			t.Fatalf("count=%d: DecodeMatrixKeyBatch: %v", count, err)
		}
		if len(gotMatrices) != count || len(gotFrames) != count {
			t.Fatalf("count=%d: decoded %d matrices, %d frames", count, len(gotMatrices), len(gotFrames))
		}
		for i := range gotMatrices {
			if gotMatrices[i] != matrices[i] {
				t.Errorf("count=%d: matrix %d mismatch", count, i)
			}
			if gotFrames[i] != frames[i] {
				t.Errorf("count=%d: frame %d = %v, want %v", count, i, gotFrames[i], frames[i])
			}
		}
	}
}

func TestFlenKeyBatchRoundTrip(t *testing.T) {
	values := []float64{35, 50, 24.5}
	frames := []float64{12, 1, 7}

	gotValues, gotFrames, err := DecodeFlenKeyBatch(EncodeFlenKeys(values, frames))
	if err != nil {
		t.Fatalf("DecodeFlenKeyBatch: %v", err)
	}
	for i := range values {
		if gotValues[i] != values[i] || gotFrames[i] != frames[i] {
			t.Errorf("key %d = (%v, %v), want (%v, %v)", i, gotValues[i], gotFrames[i], values[i], frames[i])
		}
	}
}

func TestServerInfoPayloadLayout(t *testing.T) {
	payload := ServerInfoPayload([3]uint16{2, 0, 0}, "Go_studio-box - Go")

	if got := binary.LittleEndian.Uint16(payload); got != 2 {
		t.Errorf("major version = %d, want 2", got)
	}
	if got := string(payload[6:]); got != "Go_studio-box - Go" {
		t.Errorf("name = %q", got)
	}
}

func TestCameraListPayload(t *testing.T) {
	tests := []struct {
		name    string
		current uint16
		cameras []string
		want    string
	}{
		{"selected", 1, []string{"camA", "camB", "camC"}, "camA$camB$camC"},
		{"none selected", CurrentCameraNone, []string{"persp"}, "persp"},
		{"empty scene", CurrentCameraNone, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := CameraListPayload(tt.current, tt.cameras)
			if got := binary.LittleEndian.Uint16(payload); got != tt.current {
				t.Errorf("current index = %d, want %d", got, tt.current)
			}
			if got := string(payload[2:]); got != tt.want {
				t.Errorf("name list = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeStreamRequest(t *testing.T) {
	req := StreamRequest{FPS: 30, Bitrate: 10, Port: 23355, Opaque: false, Autosend: true}
	got, err := DecodeStreamRequest(EncodeStreamRequest(req))
	if err != nil {
		t.Fatalf("DecodeStreamRequest: %v", err)
	}
	if got != req {
		t.Errorf("round-trip = %+v, want %+v", got, req)
	}
}

func TestDecodeShortPayloadFails(t *testing.T) {
	if _, err := DecodeMatrix(make([]byte, 100)); !errors.Is(err, ErrShortPayload) {
		t.Errorf("DecodeMatrix short buffer error = %v, want ErrShortPayload", err)
	}
	if _, err := DecodeStreamRequest(make([]byte, 11)); !errors.Is(err, ErrShortPayload) {
		t.Errorf("DecodeStreamRequest short buffer error = %v, want ErrShortPayload", err)
	}
	if _, _, err := DecodeMatrixKeyBatch(EncodeMatrixKeys(make([]transform.Matrix, 2), make([]float64, 2))[:40]); err == nil {
		t.Error("DecodeMatrixKeyBatch on truncated batch should fail")
	}
}

func TestReadExactShortRead(t *testing.T) {
	// Peer closes the socket before the full payload arrives.
	r := bytes.NewReader([]byte{1, 2, 3})
	if _, err := ReadExact(r, 8); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadExact error = %v, want io.ErrUnexpectedEOF", err)
	}

	got, err := ReadExact(bytes.NewReader([]byte{9, 8, 7}), 3)
	if err != nil {
		t.Fatalf("ReadExact: %v", err)
	}
	if !bytes.Equal(got, []byte{9, 8, 7}) {
		t.Errorf("ReadExact = %v", got)
	}
}

func TestSceneStatusPayload(t *testing.T) {
	payload := SceneStatusPayload(42, 1, 250, 35.5)
	if len(payload) != 32 {
		t.Fatalf("payload length = %d, want 32", len(payload))
	}
	want := []float64{42, 1, 250, 35.5}
	for i, w := range want {
		if got := math.Float64frombits(binary.LittleEndian.Uint64(payload[i*8:])); got != w {
			t.Errorf("field %d = %v, want %v", i, got, w)
		}
	}
}
