// Package asset defines the cache key model for the two asset classes served
// by hanzicache: pronunciation audio for Chinese text and per-stroke
// animation frames for single characters.
//
// Keys are immutable value types. Construction normalizes the input text
// (Unicode NFC + whitespace collapsing) so that two logically-equal keys are
// identical everywhere — in the in-process cache, in blob-store paths, and in
// relational primary keys.
package asset

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Kind discriminates the two asset classes.
type Kind string

const (
	// KindAudio is a pronunciation clip (MP3) for a hanzi word or phrase.
	KindAudio Kind = "audio"

	// KindStroke is a single stroke-order animation frame (GIF) for one
	// character.
	KindStroke Kind = "stroke"
)

// IsValid reports whether k is a recognised asset kind.
func (k Kind) IsValid() bool {
	return k == KindAudio || k == KindStroke
}

// String returns the kind name.
func (k Kind) String() string { return string(k) }

// maxAudioTextRunes bounds the text accepted for an audio key. The TTS
// endpoint rejects longer inputs anyway.
const maxAudioTextRunes = 256

// Key identifies one cacheable asset. The zero Key is invalid; use
// [AudioKey] or [StrokeKey]. Keys are comparable and may be used as map keys.
type Key struct {
	// Kind selects the asset class and determines which fields are set.
	Kind Kind

	// Text is the hanzi word or phrase to pronounce. Set only for KindAudio.
	Text string

	// Character is the single hanzi character. Set only for KindStroke.
	Character string

	// Ordinal is the 1-based stroke index. Set only for KindStroke.
	Ordinal int
}

// AudioKey builds a normalized audio key for the given hanzi text.
func AudioKey(text string) Key {
	return Key{Kind: KindAudio, Text: Normalize(text)}
}

// StrokeKey builds a normalized stroke-frame key for the given character and
// 1-based stroke ordinal.
func StrokeKey(character string, ordinal int) Key {
	return Key{Kind: KindStroke, Character: Normalize(character), Ordinal: ordinal}
}

// Normalize applies Unicode NFC and collapses runs of whitespace into single
// spaces, trimming the ends. All key constructors route through this so the
// same logical text always produces the same key.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	return strings.Join(strings.Fields(text), " ")
}

// ID returns the stable string form of the key, used by the singleflight
// registry and in log output.
func (k Key) ID() string {
	if k.Kind == KindStroke {
		return fmt.Sprintf("stroke:%s:%d", k.Character, k.Ordinal)
	}
	return "tts:" + k.Text
}

// String implements fmt.Stringer.
func (k Key) String() string { return k.ID() }

// ObjectPath returns the deterministic blob-store path for the key:
//
//	tts/<first 16 hex chars of md5(text)>.mp3
//	strokes/<character>_<ordinal>.gif
//
// The audio path hashes the text because phrases may contain characters that
// are awkward in object keys; stroke paths stay human-readable.
func (k Key) ObjectPath() string {
	if k.Kind == KindStroke {
		return fmt.Sprintf("strokes/%s_%d.gif", k.Character, k.Ordinal)
	}
	sum := md5.Sum([]byte(k.Text))
	return "tts/" + hex.EncodeToString(sum[:])[:16] + ".mp3"
}

// ContentType returns the MIME type of the asset payload.
func (k Key) ContentType() string {
	if k.Kind == KindStroke {
		return "image/gif"
	}
	return "audio/mpeg"
}

// Validate checks that the key is well-formed for its kind.
func (k Key) Validate() error {
	switch k.Kind {
	case KindAudio:
		if k.Text == "" {
			return errors.New("asset: audio key: text must not be empty")
		}
		if utf8.RuneCountInString(k.Text) > maxAudioTextRunes {
			return fmt.Errorf("asset: audio key: text exceeds %d runes", maxAudioTextRunes)
		}
	case KindStroke:
		if utf8.RuneCountInString(k.Character) != 1 {
			return fmt.Errorf("asset: stroke key: character %q must be exactly one rune", k.Character)
		}
		if !IsChinese(k.Character) {
			return fmt.Errorf("asset: stroke key: %q is not a CJK character", k.Character)
		}
		if k.Ordinal < 1 {
			return fmt.Errorf("asset: stroke key: ordinal %d must be >= 1", k.Ordinal)
		}
	default:
		return fmt.Errorf("asset: unknown key kind %q", k.Kind)
	}
	return nil
}

// IsChinese reports whether text contains at least one character in the CJK
// Unified Ideographs block.
func IsChinese(text string) bool {
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}
