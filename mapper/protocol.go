package mapper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kwv/odomesh/odometry"
)

// MessageKind identifies what a robot message carries.
type MessageKind int

const (
	// KindCounts carries cumulative encoder counts, optionally with the pose
	// the robot computed on board.
	KindCounts MessageKind = iota
	// KindReset announces that the robot zeroed its odometry.
	KindReset
	// KindReady is sent once when the robot firmware has booted.
	KindReady
)

func (k MessageKind) String() string {
	switch k {
	case KindCounts:
		return "counts"
	case KindReset:
		return "reset"
	case KindReady:
		return "ready"
	default:
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
}

// Control lines sent by the robot firmware.
const (
	ResetLine = "ODOMETRY_RESET"
	ReadyLine = "RC_CAR_READY"

	odomPrefix = "ODOM:"
)

// ErrUnknownMessage is returned for payloads that match none of the
// supported formats.
var ErrUnknownMessage = errors.New("unknown robot message")

// Message is one decoded robot message.
type Message struct {
	Kind   MessageKind
	Counts odometry.EncoderCounts
	// Reported is the pose the robot computed itself (cm, rad). Only ODOM
	// lines carry it.
	Reported *odometry.Pose
	// Timestamp is Unix milliseconds, 0 when the payload had none.
	Timestamp int64
}

// countsPayload is the JSON form of an encoder reading.
type countsPayload struct {
	Left      *int64 `json:"left"`
	Right     *int64 `json:"right"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ParseMessage decodes one robot message. Accepted forms:
//
//	ODOM:X:Y:THETA:LEFT:RIGHT
//	{"left": 120, "right": 118, "timestamp": 1700000000000}
//	120,118
//	ODOMETRY_RESET
//	RC_CAR_READY
func ParseMessage(payload []byte) (Message, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Message{}, fmt.Errorf("%w: empty payload", ErrUnknownMessage)
	}

	line := string(trimmed)
	switch {
	case line == ResetLine:
		return Message{Kind: KindReset}, nil
	case line == ReadyLine:
		return Message{Kind: KindReady}, nil
	case strings.HasPrefix(line, odomPrefix):
		return parseOdomLine(line[len(odomPrefix):])
	case trimmed[0] == '{':
		return parseCountsJSON(trimmed)
	case strings.Contains(line, ","):
		return parseCountsPair(line)
	}

	return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessage, truncate(line, 64))
}

func parseOdomLine(body string) (Message, error) {
	parts := strings.Split(body, ":")
	if len(parts) < 5 {
		return Message{}, fmt.Errorf("ODOM line has %d fields, want 5", len(parts))
	}

	var pose [3]float64
	for i := range pose {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return Message{}, fmt.Errorf("ODOM field %d: %w", i+1, err)
		}
		pose[i] = v
	}

	left, err := parseCount(parts[3])
	if err != nil {
		return Message{}, fmt.Errorf("ODOM left count: %w", err)
	}
	right, err := parseCount(parts[4])
	if err != nil {
		return Message{}, fmt.Errorf("ODOM right count: %w", err)
	}

	return Message{
		Kind:     KindCounts,
		Counts:   odometry.EncoderCounts{Left: left, Right: right},
		Reported: &odometry.Pose{X: pose[0], Y: pose[1], Theta: pose[2]},
	}, nil
}

func parseCountsJSON(data []byte) (Message, error) {
	var p countsPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Message{}, fmt.Errorf("decoding counts JSON: %w", err)
	}
	if p.Left == nil || p.Right == nil {
		return Message{}, fmt.Errorf("counts JSON needs both left and right")
	}
	return Message{
		Kind:      KindCounts,
		Counts:    odometry.EncoderCounts{Left: *p.Left, Right: *p.Right},
		Timestamp: p.Timestamp,
	}, nil
}

func parseCountsPair(line string) (Message, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return Message{}, fmt.Errorf("counts pair has %d fields, want 2", len(parts))
	}
	left, err := parseCount(parts[0])
	if err != nil {
		return Message{}, fmt.Errorf("left count: %w", err)
	}
	right, err := parseCount(parts[1])
	if err != nil {
		return Message{}, fmt.Errorf("right count: %w", err)
	}
	return Message{
		Kind:   KindCounts,
		Counts: odometry.EncoderCounts{Left: left, Right: right},
	}, nil
}

func parseCount(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
