package pokebattle

import (
	"encoding/base64"
	"errors"
	"log"
	"os"
)

// Chat content types
const (
	ChatText    = "TEXT"
	ChatSticker = "STICKER"
)

// ErrStickerTooBig is returned when an encoded sticker would not
// fit into a single datagram
var ErrStickerTooBig = errors.New("sticker does not fit into a datagram")

// ChatMsg returns a text chat message from sender
func ChatMsg(sender, text string) *Msg {
	return NewMsg(TypeChatMessage).
		Set("sender_name", sender).
		Set("content_type", ChatText).
		Set("message_text", text)
}

// StickerMsg reads the image at path and returns a sticker chat
// message carrying it base64-encoded
func StickerMsg(sender, path string) (*Msg, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	b64 := base64.StdEncoding.EncodeToString(data)

	msg := NewMsg(TypeChatMessage).
		Set("sender_name", sender).
		Set("content_type", ChatSticker).
		Set("sticker_data", b64)

	// Leave headroom for the other fields and the sequence number.
	if len(msg.Bytes())+64 > MaxDatagramSize {
		return nil, ErrStickerTooBig
	}

	return msg, nil
}

func (b *Battle) handleChat(msg *Msg) {
	sender := msg.Str("sender_name")
	if sender == "" {
		sender = "Anon"
	}

	kind := msg.Str("content_type")
	body := msg.Str("message_text")
	if kind == ChatSticker {
		body = msg.Str("sticker_data")
	}

	if b.OnChat != nil {
		b.OnChat(sender, kind, body)
		return
	}

	if kind == ChatSticker {
		log.Printf("[chat] %s sent a sticker (%d bytes)", sender, len(body))
	} else {
		log.Printf("[chat] %s: %s", sender, body)
	}
}
