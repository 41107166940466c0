package gcm

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func nextChunkBody(t *testing.T, stream *messageStream) map[string]interface{} {
	t.Helper()
	_, data, err := stream.NextChunk()
	if err != nil {
		t.Fatalf("NextChunk failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Chunk body is not valid JSON: %v", err)
	}
	return decoded
}

func TestMessageDefaults(t *testing.T) {
	stream := newMessageStream([]string{"reg-a"}, NewMessage("hi"), 0)
	decoded := nextChunkBody(t, stream)

	expected := map[string]interface{}{
		"to":       "reg-a",
		"priority": "high",
		"data":     map[string]interface{}{"message": "hi"},
	}
	if !reflect.DeepEqual(decoded, expected) {
		t.Errorf("Expected body %v, got %v", expected, decoded)
	}
}

func TestMessageFields(t *testing.T) {
	m := &Message{
		Data:                  map[string]interface{}{"k": "v"},
		Notification:          map[string]interface{}{"title": "T", "body": "B"},
		CollapseKey:           "group1",
		DelayWhileIdle:        true,
		TimeToLive:            3600,
		RestrictedPackageName: "com.example.app",
		DryRun:                true,
	}
	stream := newMessageStream([]string{"reg-a", "reg-b"}, m, 0)
	decoded := nextChunkBody(t, stream)

	if decoded["collapse_key"] != "group1" {
		t.Errorf("Unexpected collapse_key %v", decoded["collapse_key"])
	}
	if decoded["delay_while_idle"] != true {
		t.Errorf("Unexpected delay_while_idle %v", decoded["delay_while_idle"])
	}
	if decoded["time_to_live"] != float64(3600) {
		t.Errorf("Unexpected time_to_live %v", decoded["time_to_live"])
	}
	if decoded["restricted_package_name"] != "com.example.app" {
		t.Errorf("Unexpected restricted_package_name %v", decoded["restricted_package_name"])
	}
	if decoded["dry_run"] != true {
		t.Errorf("Unexpected dry_run %v", decoded["dry_run"])
	}
	notification, _ := decoded["notification"].(map[string]interface{})
	if notification["title"] != "T" || notification["body"] != "B" {
		t.Errorf("Unexpected notification %v", decoded["notification"])
	}

	ids, _ := decoded["registration_ids"].([]interface{})
	if len(ids) != 2 {
		t.Errorf("Expected registration_ids for multiple recipients, got %v", decoded)
	}
	if _, present := decoded["to"]; present {
		t.Errorf("to and registration_ids are mutually exclusive: %v", decoded)
	}
}

func TestMessageLowPriority(t *testing.T) {
	stream := newMessageStream([]string{"reg-a"}, &Message{LowPriority: true}, 0)
	decoded := nextChunkBody(t, stream)

	if _, present := decoded["priority"]; present {
		t.Errorf("Low priority must omit the priority member, got %v", decoded)
	}
}

func TestMessageNoHTMLEscaping(t *testing.T) {
	stream := newMessageStream([]string{"reg-a"}, NewMessage("a <b> & c"), 0)
	_, data, err := stream.NextChunk()
	if err != nil {
		t.Fatalf("NextChunk failed: %v", err)
	}
	if strings.Contains(string(data), `<`) || strings.Contains(string(data), `&`) {
		t.Errorf("Body should not HTML-escape: %v", string(data))
	}
}

func TestStreamChunkBoundaries(t *testing.T) {
	ids := testRegistrationIDs(5)
	stream := newMessageStream(ids, NewMessage("hi"), 2)

	var chunks [][]string
	for !stream.EOF() {
		chunk, _, err := stream.NextChunk()
		if err != nil {
			t.Fatalf("NextChunk failed: %v", err)
		}
		chunks = append(chunks, chunk)
	}

	expected := [][]string{ids[0:2], ids[2:4], ids[4:5]}
	if !reflect.DeepEqual(chunks, expected) {
		t.Errorf("Expected chunks %v, got %v", expected, chunks)
	}
}
