package asset

import (
	"strings"
	"testing"
)

func TestAudioKey_Normalization(t *testing.T) {
	a := AudioKey("  你好   世界 ")
	b := AudioKey("你好 世界")
	if a != b {
		t.Fatalf("normalized keys differ: %v vs %v", a, b)
	}
	if a.Text != "你好 世界" {
		t.Errorf("Text = %q, want %q", a.Text, "你好 世界")
	}
}

func TestAudioKey_NFC(t *testing.T) {
	// U+00E9 (é) vs U+0065 U+0301 (e + combining acute) must normalize to
	// the same key.
	composed := AudioKey("café")
	decomposed := AudioKey("café")
	if composed != decomposed {
		t.Fatalf("NFC keys differ: %q vs %q", composed.Text, decomposed.Text)
	}
}

func TestKey_ID(t *testing.T) {
	if got := AudioKey("你好").ID(); got != "tts:你好" {
		t.Errorf("audio ID = %q", got)
	}
	if got := StrokeKey("学", 3).ID(); got != "stroke:学:3" {
		t.Errorf("stroke ID = %q", got)
	}
}

func TestKey_ObjectPath(t *testing.T) {
	p := AudioKey("你好").ObjectPath()
	if !strings.HasPrefix(p, "tts/") || !strings.HasSuffix(p, ".mp3") {
		t.Errorf("audio path = %q, want tts/<hash>.mp3", p)
	}
	// 16 hex chars between prefix and suffix.
	hash := strings.TrimSuffix(strings.TrimPrefix(p, "tts/"), ".mp3")
	if len(hash) != 16 {
		t.Errorf("audio path hash length = %d, want 16", len(hash))
	}
	// Equal keys map to equal paths.
	if p != AudioKey(" 你好 ").ObjectPath() {
		t.Error("equal keys produced different object paths")
	}

	if got := StrokeKey("学", 3).ObjectPath(); got != "strokes/学_3.gif" {
		t.Errorf("stroke path = %q", got)
	}
}

func TestKey_ContentType(t *testing.T) {
	if got := AudioKey("你好").ContentType(); got != "audio/mpeg" {
		t.Errorf("audio content type = %q", got)
	}
	if got := StrokeKey("学", 1).ContentType(); got != "image/gif" {
		t.Errorf("stroke content type = %q", got)
	}
}

func TestKey_Validate(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		wantErr bool
	}{
		{"valid audio", AudioKey("你好"), false},
		{"empty audio", AudioKey("   "), true},
		{"long audio", AudioKey(strings.Repeat("好", 257)), true},
		{"valid stroke", StrokeKey("学", 1), false},
		{"multi-rune stroke", StrokeKey("学习", 1), true},
		{"non-CJK stroke", StrokeKey("a", 1), true},
		{"zero ordinal", StrokeKey("学", 0), true},
		{"zero key", Key{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsChinese(t *testing.T) {
	if !IsChinese("你好") {
		t.Error("你好 should be Chinese")
	}
	if IsChinese("hello") {
		t.Error("hello should not be Chinese")
	}
	if !IsChinese("abc学") {
		t.Error("mixed text containing CJK should report true")
	}
}
