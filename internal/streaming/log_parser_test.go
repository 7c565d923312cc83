package streaming

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "plain level",
			line:      "[info] frame=  120 fps=30",
			wantLevel: "info",
			wantMsg:   "frame=  120 fps=30",
		},
		{
			name:      "error level",
			line:      "[error] Connection refused",
			wantLevel: "error",
			wantMsg:   "Connection refused",
		},
		{
			name:      "component prefix keeps component",
			line:      "[libx264 @ 0x5555] [warning] VBV underflow",
			wantLevel: "warning",
			wantMsg:   "[libx264 @ 0x5555] VBV underflow",
		},
		{
			name:      "no bracket defaults to info",
			line:      "Press [q] to stop",
			wantLevel: "info",
			wantMsg:   "Press [q] to stop",
		},
		{
			name:      "unknown bracket defaults to info",
			line:      "[avi @ 0x1234] muxing overhead",
			wantLevel: "info",
			wantMsg:   "[avi @ 0x1234] muxing overhead",
		},
		{
			name:      "empty line",
			line:      "",
			wantLevel: "info",
			wantMsg:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, msg := ParseLogLevel(tt.line)
			if level != tt.wantLevel {
				t.Errorf("level = %q, want %q", level, tt.wantLevel)
			}
			if msg != tt.wantMsg {
				t.Errorf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}
