package mqtt

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/golang/protobuf/ptypes/timestamp"

	"github.com/JFDuval/flexsea-v2/pkg/comm"
)

// Record is a frame observed on a channel.
type Record struct {
	Channel string
	Time    time.Time
	Frame   *comm.Frame
}

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

// EncodeRecord serializes r as a protobuf Struct.
func EncodeRecord(r *Record) ([]byte, error) {
	ts, err := ptypes.TimestampProto(r.Time)
	if err != nil {
		return nil, err
	}
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"channel": stringValue(r.Channel),
		"seconds": numberValue(float64(ts.Seconds)),
		"nanos":   numberValue(float64(ts.Nanos)),
		"command": numberValue(float64(r.Frame.Command)),
		"mode":    stringValue(r.Frame.Mode.String()),
		"ack":     numberValue(float64(r.Frame.Ack)),
		"seq":     numberValue(float64(r.Frame.Seq)),
		"payload": stringValue(hex.EncodeToString(r.Frame.Payload)),
	}}
	return proto.Marshal(msg)
}

// DecodeRecord parses a payload produced by EncodeRecord.
func DecodeRecord(data []byte) (*Record, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	fields := msg.GetFields()
	number := func(name string) (float64, error) {
		v, ok := fields[name].GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return 0, fmt.Errorf("field %q missing", name)
		}
		return v.NumberValue, nil
	}
	str := func(name string) (string, error) {
		v, ok := fields[name].GetKind().(*structpb.Value_StringValue)
		if !ok {
			return "", fmt.Errorf("field %q missing", name)
		}
		return v.StringValue, nil
	}

	var nums [5]float64
	for i, name := range []string{"seconds", "nanos", "command", "ack", "seq"} {
		v, err := number(name)
		if err != nil {
			return nil, err
		}
		nums[i] = v
	}
	var strs [3]string
	for i, name := range []string{"channel", "mode", "payload"} {
		v, err := str(name)
		if err != nil {
			return nil, err
		}
		strs[i] = v
	}

	t, err := ptypes.Timestamp(&timestamp.Timestamp{Seconds: int64(nums[0]), Nanos: int32(nums[1])})
	if err != nil {
		return nil, err
	}
	mode, err := comm.ParseMode(strs[1])
	if err != nil {
		return nil, err
	}
	payload, err := hex.DecodeString(strs[2])
	if err != nil {
		return nil, err
	}
	f := &comm.Frame{
		Command: comm.Command(nums[2]),
		Mode:    mode,
		Ack:     comm.Ack(nums[3]),
		Seq:     comm.Sequence(nums[4]),
	}
	if len(payload) > 0 {
		f.Payload = payload
	}
	return &Record{Channel: strs[0], Time: t, Frame: f}, nil
}
