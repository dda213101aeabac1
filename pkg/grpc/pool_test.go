package grpc

import (
	"testing"
	"time"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestPool_ReusesConnectionPerTarget(t *testing.T) {
	p := NewPool(WithBearerToken("tok"))
	a, err := p.GetConnection("localhost:50051")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, err := p.GetConnection("localhost:50051")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if a != b {
		t.Fatalf("same target should reuse the connection")
	}
	c, err := p.GetConnection("localhost:50052")
	if err != nil {
		t.Fatalf("get other: %v", err)
	}
	if c == a {
		t.Fatalf("different target should get its own connection")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	d, err := p.GetConnection("localhost:50051")
	if err != nil {
		t.Fatalf("get after close: %v", err)
	}
	if d == a {
		t.Fatalf("closed pool should dial a new connection")
	}
	p.Close()
}

func TestJSONCodec(t *testing.T) {
	codec := encoding.GetCodec(JSONCodecName)
	if codec == nil {
		t.Fatalf("json codec not registered")
	}

	type msg struct {
		Name string `json:"name"`
	}
	raw, err := codec.Marshal(&msg{Name: "Priya"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"name":"Priya"}` {
		t.Fatalf("json got=%s", raw)
	}

	ts := timestamppb.New(time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC))
	raw, err = codec.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal proto: %v", err)
	}
	if string(raw) != `"2024-06-01T09:30:00Z"` {
		t.Fatalf("protojson got=%s", raw)
	}
	var back timestamppb.Timestamp
	if err := codec.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal proto: %v", err)
	}
	if !back.AsTime().Equal(ts.AsTime()) {
		t.Fatalf("timestamp got=%v want=%v", back.AsTime(), ts.AsTime())
	}
}
