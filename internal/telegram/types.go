// Package telegram is a minimal Telegram Bot API transport: long-poll
// update delivery in, reply-text emission out. It carries no decision
// logic; updates are translated into orchestrator events.
package telegram

// apiResponse is the envelope every Bot API call returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	ErrorCode   int    `json:"error_code,omitempty"`
}

// User is the bot's own identity, from getMe.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Update is one inbound event from getUpdates.
type Update struct {
	UpdateID    int64        `json:"update_id"`
	Message     *Message     `json:"message,omitempty"`
	InlineQuery *InlineQuery `json:"inline_query,omitempty"`
}

// Message is an inbound or outbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
	Voice     *Voice `json:"voice,omitempty"`
}

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// Voice is an inbound voice note.
type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"` // seconds
}

// InlineQuery is an inbound inline query.
type InlineQuery struct {
	ID    string `json:"id"`
	Query string `json:"query"`
}

// File is the fetchable location of a media artifact, from getFile.
type File struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

// inlineArticle is one answerInlineQuery result item.
type inlineArticle struct {
	Type                string             `json:"type"`
	ID                  string             `json:"id"`
	Title               string             `json:"title"`
	InputMessageContent inlineContent      `json:"input_message_content"`
}

type inlineContent struct {
	MessageText string `json:"message_text"`
}
