package wire

import "testing"

func TestRegistrationRoundTrip(t *testing.T) {
	cases := []struct {
		op      Opcode
		pipe    string
		box     string
	}{
		{OpPubReg, "/tmp/pub1", "/a"},
		{OpSubReg, "/tmp/sub1", "/box-name"},
		{OpBoxCreate, "/tmp/mgr1", "/a"},
		{OpBoxRemove, "/tmp/mgr2", "/a"},
	}
	for _, c := range cases {
		buf, err := EncodeRegistration(c.op, c.pipe, c.box)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if len(buf) != RegistrationSize {
			t.Fatalf("encoded length = %d, want %d", len(buf), RegistrationSize)
		}
		got, err := DecodeRegistration(buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Opcode != c.op || got.PipePath != c.pipe || got.BoxName != c.box {
			t.Fatalf("round trip mismatch: got %+v, want {%v %v %v}", got, c.op, c.pipe, c.box)
		}
	}
}

func TestListRequestRoundTrip(t *testing.T) {
	buf, err := EncodeRegistration(OpBoxList, "/tmp/mgr3", "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) != ListRequestSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), ListRequestSize)
	}
	got, err := DecodeRegistration(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Opcode != OpBoxList || got.PipePath != "/tmp/mgr3" {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestDecodeRegistrationRejectsUnknownOpcode(t *testing.T) {
	buf := make([]byte, RegistrationSize)
	buf[0] = 0xEE
	if _, err := DecodeRegistration(buf); err == nil {
		t.Fatal("expected error for unknown opcode")
	}
}

func TestMessageFrameRoundTrip(t *testing.T) {
	buf, err := EncodeMessage(OpPubMsg, "hello")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) != PubMsgFrameSize {
		t.Fatalf("frame length = %d, want %d", len(buf), PubMsgFrameSize)
	}
	if Opcode(buf[0]) != OpPubMsg {
		t.Fatalf("opcode = %v, want PUB_MSG", Opcode(buf[0]))
	}
	if got := DecodeMessagePayload(buf[OpcodeSize:]); got != "hello" {
		t.Fatalf("payload = %q, want %q", got, "hello")
	}
}

func TestMessageFrameRejectsOversizedPayload(t *testing.T) {
	big := make([]byte, MsgMaxSize)
	for i := range big {
		big[i] = 'x'
	}
	if _, err := EncodeMessage(OpPubMsg, string(big)); err == nil {
		t.Fatal("expected error for payload that doesn't leave room for NUL")
	}
}

func TestBoxResponseRoundTripSuccess(t *testing.T) {
	buf, err := EncodeBoxResponse(OpResBoxCreate, 0, "")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) != BoxResponseSize {
		t.Fatalf("length = %d, want %d", len(buf), BoxResponseSize)
	}
	rc, msg, err := DecodeBoxResponse(buf[OpcodeSize:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rc != 0 || msg != "" {
		t.Fatalf("got rc=%d msg=%q, want rc=0 msg=\"\"", rc, msg)
	}
}

func TestBoxResponseRoundTripError(t *testing.T) {
	buf, err := EncodeBoxResponse(OpResBoxRemove, -1, ErrBoxNotFound)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rc, msg, err := DecodeBoxResponse(buf[OpcodeSize:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rc != -1 || msg != ErrBoxNotFound {
		t.Fatalf("got rc=%d msg=%q, want rc=-1 msg=%q", rc, msg, ErrBoxNotFound)
	}
}

func TestBoxListFrameRoundTrip(t *testing.T) {
	rec := BoxRecord{Name: "/a", Size: 1024, NPublishers: 1, NSubscribers: 2}
	buf, err := EncodeBoxListFrame(true, rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) != BoxListFrameSize {
		t.Fatalf("length = %d, want %d", len(buf), BoxListFrameSize)
	}
	last, got, err := DecodeBoxListFrame(buf[OpcodeSize:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !last || got != rec {
		t.Fatalf("got last=%v rec=%+v, want last=true rec=%+v", last, got, rec)
	}
}
