package domain

import "time"

// AttachmentKind classifies inbound media
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentVideo AttachmentKind = "video"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment references media carried by an inbound message.
// Bytes are fetched lazily through the transport.
type Attachment struct {
	Kind     AttachmentKind
	MsgID    string // message that carries the resource
	Key      string // transport resource key (image_key / file_key)
	FileName string
}

// IsConvertible reports whether the attachment holds an audio track
func (a Attachment) IsConvertible() bool {
	return a.Kind == AttachmentAudio || a.Kind == AttachmentVideo
}

// IncomingMessage is an inbound chat message. It is never mutated after receipt.
type IncomingMessage struct {
	MsgID       string
	ChatID      Identity
	SenderID    Identity
	IsGroup     bool
	Text        string
	Attachments []Attachment
	Mentions    []Identity // mentioned users, bot itself excluded
	ReceivedAt  time.Time
}

// HasAttachments reports whether the message carries any media
func (m *IncomingMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// FirstAttachment returns the first attachment, if any
func (m *IncomingMessage) FirstAttachment() (Attachment, bool) {
	if len(m.Attachments) == 0 {
		return Attachment{}, false
	}
	return m.Attachments[0], true
}

// ChatInfo describes a chat as reported by the transport
type ChatInfo struct {
	ChatID      Identity
	Name        string
	IsGroup     bool
	MemberCount int
}
