package domain

// MediaKind represents the kind of media attached to a message
type MediaKind string

const (
	MediaKindPhoto     MediaKind = "photo"
	MediaKindVideo     MediaKind = "video"
	MediaKindAudio     MediaKind = "audio"
	MediaKindAnimation MediaKind = "animation"
	MediaKindDocument  MediaKind = "document"
	MediaKindWebPage   MediaKind = "webpage"
	MediaKindOther     MediaKind = "other"
)

// MediaRef references media carried by an inbound message.
// Handle is opaque to the pipeline and only interpreted by the chat repository.
type MediaRef struct {
	Kind     MediaKind
	FileName string
	MimeType string
	Handle   any
}

// MediaPayload is downloaded media ready to be uploaded to the target
type MediaPayload struct {
	Ref  MediaRef
	Data []byte
}

// InboundMessage is a read-only view of one received message.
// ID is monotonic within ChatID only.
type InboundMessage struct {
	ID          int
	ChatID      int64
	GroupID     string // empty unless part of an album
	Text        string
	IsForwarded bool
	Media       *MediaRef
}

// HasGroup reports whether the message belongs to an album
func (m *InboundMessage) HasGroup() bool {
	return m.GroupID != ""
}

// HasMedia reports whether the message carries media
func (m *InboundMessage) HasMedia() bool {
	return m.Media != nil
}

// IsDocument reports whether the message carries a document with a file name
func (m *InboundMessage) IsDocument() bool {
	return m.Media != nil && m.Media.Kind == MediaKindDocument
}

// FilterDecision is the outcome of running the filter rules over a message
type FilterDecision struct {
	ShouldCopy bool
	Reason     string
}

// Keep returns a passing decision
func Keep() FilterDecision {
	return FilterDecision{ShouldCopy: true}
}

// Drop returns a failing decision with a reason
func Drop(reason string) FilterDecision {
	return FilterDecision{ShouldCopy: false, Reason: reason}
}
