// Package protocol defines the wire command set and the binary codec for
// the remote-camera control protocol: little-endian, one opcode byte per
// command, fixed or length-prefixed payloads.
package protocol

import "strconv"

// Opcode is the one-byte command tag. The value space is partitioned by
// convention: 0-49 ASK (query), 50-149 SET (acknowledged mutation),
// 150-199 DO (acknowledged action), 200-255 ERR (server to client only).
type Opcode byte

// ASK commands. The server computes and replies; no payload is read from
// the client beyond the opcode.
const (
	AskServerInfo    Opcode = 0
	AskSceneStatus   Opcode = 1
	AskSceneCameras  Opcode = 2
	AskCameraMatrix  Opcode = 3
	AskViewportImg   Opcode = 4
	AskPlayFps       Opcode = 5
	AskCameraHasKeys Opcode = 6
	AskScriptLabels  Opcode = 7
)

// SET commands. The server echoes the opcode, then reads the fixed payload,
// then mutates.
const (
	SetPlaybackRange      Opcode = 50
	SetCurrentTime        Opcode = 51
	SetCurrentCamera      Opcode = 52
	SetCameraMatrix       Opcode = 53
	SetCameraMatrixAtTime Opcode = 54
	SetFocalLength        Opcode = 55
	SetFocalLengthAtTime  Opcode = 56
	SetCameraAll          Opcode = 57
	SetCameraAllAtTime    Opcode = 58
	SetCameraMatrixKeys   Opcode = 59
	SetCameraFlenKeys     Opcode = 60
)

// DO commands. The server echoes the opcode, reads the payload if any, and
// performs the action. DoExecuteScript is the one exception to the
// ack-first rule: its reply is sent only after the script has run.
const (
	DoStartStreaming   Opcode = 150
	DoStopStreaming    Opcode = 151
	DoStartPlayback    Opcode = 152
	DoStopPlayback     Opcode = 153
	DoSwitchPlayback   Opcode = 154
	DoRemoveCameraKeys Opcode = 155
	DoCreateNewCamera  Opcode = 156
	DoExecuteScript    Opcode = 157
)

// ERR commands, server to client only.
const (
	ErrMissingCamera Opcode = 200
	ErrNotStreaming  Opcode = 201
	ErrFFmpeg        Opcode = 202
	ErrExecuteScript Opcode = 203
)

// Category classifies an opcode by its range.
type Category int

const (
	CategoryAsk Category = iota
	CategorySet
	CategoryDo
	CategoryErr
)

// Category returns the range-based category of the opcode.
func (o Opcode) Category() Category {
	switch {
	case o < 50:
		return CategoryAsk
	case o < 150:
		return CategorySet
	case o < 200:
		return CategoryDo
	default:
		return CategoryErr
	}
}

// String returns the category name, used as a metrics label.
func (c Category) String() string {
	switch c {
	case CategoryAsk:
		return "ask"
	case CategorySet:
		return "set"
	case CategoryDo:
		return "do"
	default:
		return "err"
	}
}

var opcodeNames = map[Opcode]string{
	AskServerInfo:    "AskServerInfo",
	AskSceneStatus:   "AskSceneStatus",
	AskSceneCameras:  "AskSceneCameras",
	AskCameraMatrix:  "AskCameraMatrix",
	AskViewportImg:   "AskViewportImg",
	AskPlayFps:       "AskPlayFps",
	AskCameraHasKeys: "AskCameraHasKeys",
	AskScriptLabels:  "AskScriptLabels",

	SetPlaybackRange:      "SetPlaybackRange",
	SetCurrentTime:        "SetCurrentTime",
	SetCurrentCamera:      "SetCurrentCamera",
	SetCameraMatrix:       "SetCameraMatrix",
	SetCameraMatrixAtTime: "SetCameraMatrixAtTime",
	SetFocalLength:        "SetFocalLength",
	SetFocalLengthAtTime:  "SetFocalLengthAtTime",
	SetCameraAll:          "SetCameraAll",
	SetCameraAllAtTime:    "SetCameraAllAtTime",
	SetCameraMatrixKeys:   "SetCameraMatrixKeys",
	SetCameraFlenKeys:     "SetCameraFlenKeys",

	DoStartStreaming:   "DoStartStreaming",
	DoStopStreaming:    "DoStopStreaming",
	DoStartPlayback:    "DoStartPlayback",
	DoStopPlayback:     "DoStopPlayback",
	DoSwitchPlayback:   "DoSwitchPlayback",
	DoRemoveCameraKeys: "DoRemoveCameraKeys",
	DoCreateNewCamera:  "DoCreateNewCamera",
	DoExecuteScript:    "DoExecuteScript",

	ErrMissingCamera: "ErrMissingCamera",
	ErrNotStreaming:  "ErrNotStreaming",
	ErrFFmpeg:        "ErrFFmpeg",
	ErrExecuteScript: "ErrExecuteScript",
}

// String returns the opcode name, or its numeric value when unknown.
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "Opcode(" + strconv.Itoa(int(o)) + ")"
}
