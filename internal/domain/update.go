package domain

// Update is the subset of a Telegram webhook update the bot consumes.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an inbound chat message with optional attachments.
type Message struct {
	MessageID int64       `json:"message_id"`
	Date      int64       `json:"date,omitempty"`
	Chat      Chat        `json:"chat"`
	From      *User       `json:"from,omitempty"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Document  *Document   `json:"document,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// Attachment describes the file carried by a message.
type Attachment struct {
	FileID   string
	FileName string
	MimeType string
}

// Attachment returns the message's document, or its largest photo size.
func (m *Message) Attachment() (Attachment, bool) {
	if m == nil {
		return Attachment{}, false
	}
	if m.Document != nil && m.Document.FileID != "" {
		return Attachment{
			FileID:   m.Document.FileID,
			FileName: m.Document.FileName,
			MimeType: m.Document.MimeType,
		}, true
	}
	if n := len(m.Photo); n > 0 {
		best := m.Photo[0]
		for _, p := range m.Photo[1:] {
			if p.Width*p.Height >= best.Width*best.Height {
				best = p
			}
		}
		return Attachment{FileID: best.FileID, FileName: "photo.jpg", MimeType: "image/jpeg"}, true
	}
	return Attachment{}, false
}

// SenderID returns the sending user's id, or the chat id when From is absent
// (channel posts).
func (m *Message) SenderID() int64 {
	if m.From != nil {
		return m.From.ID
	}
	return m.Chat.ID
}
