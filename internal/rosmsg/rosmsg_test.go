package rosmsg

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeJointState(t *testing.T) {
	payload := []byte(`{
		"header": {"seq": 7, "stamp": {"secs": 1700000000, "nsecs": 500}, "frame_id": "PSM1_base"},
		"name": ["outer_yaw", "outer_pitch"],
		"position": [0.1, -0.2],
		"velocity": [],
		"effort": [1.5, 2.5]
	}`)
	js, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if js.Header.Seq != 7 || js.Header.FrameID != "PSM1_base" {
		t.Fatalf("unexpected header %+v", js.Header)
	}
	if len(js.Position) != 2 || js.Position[1] != -0.2 {
		t.Fatalf("unexpected position %v", js.Position)
	}
	want := time.Unix(1700000000, 500).UTC()
	if got := js.Header.Stamp.Time(); !got.Equal(want) {
		t.Fatalf("expected stamp %v, got %v", want, got)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{bad`,
		"missing position": `{"name": ["a"]}`,
		"string position":  `{"position": ["x"]}`,
		"negative nsecs":   `{"position": [1], "header": {"stamp": {"secs": 1, "nsecs": -1}}}`,
		"array payload":    `[1, 2, 3]`,
	}
	for name, payload := range cases {
		if _, err := Decode([]byte(payload)); !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("%s: expected ErrInvalidMessage, got %v", name, err)
		}
	}
}

func TestTimeROS2Fields(t *testing.T) {
	ts := Time{Sec: 10, Nanosec: 20}
	if got := ts.Time(); !got.Equal(time.Unix(10, 20).UTC()) {
		t.Fatalf("unexpected time %v", got)
	}
	if got := (Time{}).Time(); !got.IsZero() {
		t.Fatalf("expected zero time, got %v", got)
	}
}
