// Package frame implements the self-delimiting binary protocol spoken
// between the probe client and the hub daemon over a Unix-domain
// socket: Request{messages}, Log(text), Answer(text), Stop.
package frame

import (
	"github.com/please-run/please/internal/message"
)

// Kind tags a Frame variant.
type Kind uint8

const (
	KindRequest Kind = iota
	KindLog
	KindAnswer
	KindStop
)

// Frame is one frame of the wire protocol. Exactly one of the fields
// is meaningful, selected by Kind.
type Frame struct {
	Kind     Kind
	Messages []message.Message // KindRequest
	Text     string            // KindLog, KindAnswer
}

func Request(messages []message.Message) Frame {
	return Frame{Kind: KindRequest, Messages: messages}
}

func Log(text string) Frame   { return Frame{Kind: KindLog, Text: text} }
func Answer(text string) Frame { return Frame{Kind: KindAnswer, Text: text} }
func Stop() Frame             { return Frame{Kind: KindStop} }
