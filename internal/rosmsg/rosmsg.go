// Package rosmsg holds the external message schemas carried on the bus in
// rosbridge JSON encoding.
package rosmsg

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const JointStateType = "sensor_msgs/JointState"

var ErrInvalidMessage = errors.New("invalid message")

type Time struct {
	Secs  int64 `json:"secs"`
	Nsecs int64 `json:"nsecs"`
	// ROS 2 bridges publish sec/nanosec instead.
	Sec     int64 `json:"sec,omitempty"`
	Nanosec int64 `json:"nanosec,omitempty"`
}

func (t Time) Time() time.Time {
	secs, nsecs := t.Secs, t.Nsecs
	if secs == 0 && nsecs == 0 {
		secs, nsecs = t.Sec, t.Nanosec
	}
	if secs == 0 && nsecs == 0 {
		return time.Time{}
	}
	return time.Unix(secs, nsecs).UTC()
}

type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

type JointState struct {
	Header   Header    `json:"header"`
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
	Effort   []float64 `json:"effort"`
}

func (JointState) MessageType() string { return JointStateType }

const jointStateSchema = `{
  "type": "object",
  "properties": {
    "header": {
      "type": "object",
      "properties": {
        "seq": {"type": "integer", "minimum": 0},
        "frame_id": {"type": "string"},
        "stamp": {
          "type": "object",
          "properties": {
            "secs": {"type": "integer"},
            "nsecs": {"type": "integer", "minimum": 0},
            "sec": {"type": "integer"},
            "nanosec": {"type": "integer", "minimum": 0}
          }
        }
      }
    },
    "name": {"type": "array", "items": {"type": "string"}},
    "position": {"type": "array", "items": {"type": "number"}},
    "velocity": {"type": "array", "items": {"type": "number"}},
    "effort": {"type": "array", "items": {"type": "number"}}
  },
  "required": ["position"]
}`

var jointStateValidator = jsonschema.MustCompileString("sensor_msgs_JointState.json", jointStateSchema)

// Validate checks payload against the JointState JSON schema.
func Validate(payload []byte) error {
	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := jointStateValidator.Validate(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

// Decode validates and unmarshals a JointState payload.
func Decode(payload []byte) (JointState, error) {
	if err := Validate(payload); err != nil {
		return JointState{}, err
	}
	var js JointState
	if err := json.Unmarshal(payload, &js); err != nil {
		return JointState{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return js, nil
}
