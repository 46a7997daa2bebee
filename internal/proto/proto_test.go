package proto

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "plain", content: "hi", want: nil},
		{name: "empty", content: "", want: ErrContentEmpty},
		{name: "whitespace only", content: " \t\n ", want: ErrContentEmpty},
		{name: "just under limit", content: strings.Repeat("a", MaxContentLength-1), want: nil},
		{name: "at limit", content: strings.Repeat("a", MaxContentLength), want: ErrContentTooLong},
		{name: "multibyte under limit", content: strings.Repeat("é", MaxContentLength-1), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateContent(tt.content); !errors.Is(err, tt.want) {
				t.Fatalf("ValidateContent() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeDiscriminatesFrames(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"type":"REPLY","requestId":"r1","chatroomId":"c"}`, FrameReply},
		{`{"type":"MESSAGE","chatroomId":"c","content":"hi","username":"a","userId":"k","timestamp":"2024-01-01T00:00:00Z"}`, FrameMessage},
		{`{"type":"MEMBER_JOINED","chatroomId":"c","username":"bob"}`, FrameMemberJoined},
		{`{"type":"MEMBER_LEFT","chatroomId":"c"}`, FrameMemberLeft},
		{`{"type":"ROOM_CLOSED","chatroomId":"c","reason":"owner-left"}`, FrameRoomClosed},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			frame, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if frame.frameType() != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, frame.frameType())
			}
		})
	}
}

func TestDecodeReplyFields(t *testing.T) {
	frame, err := Decode([]byte(`{"type":"REPLY","requestId":"r1","members":["alice","bob"],"error":{"code":"room_not_found","msg":"room not found"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	reply, ok := frame.(*Reply)
	if !ok {
		t.Fatalf("expected *Reply, got %T", frame)
	}
	if reply.RequestID != "r1" || len(reply.Members) != 2 {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if reply.Error == nil || reply.Error.Code != "room_not_found" {
		t.Fatalf("expected error to be decoded, got %+v", reply.Error)
	}
}

func TestDecodeRejectsUntaggedFrames(t *testing.T) {
	if _, err := Decode([]byte(`{"chatroomId":"c","content":"hi"}`)); err == nil {
		t.Fatal("expected frame without type to be rejected")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatal("expected invalid json to be rejected")
	}
}
