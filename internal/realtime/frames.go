package realtime

import (
	"encoding/json"
	"strings"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
)

// Frame types. Inbound: authenticate, message. Outbound: message,
// authenticated, match, error.
const (
	FrameAuthenticate  = "authenticate"
	FrameAuthenticated = "authenticated"
	FrameMessage       = "message"
	FrameMatch         = "match"
	FrameError         = "error"
)

// InboundFrame is the union of every client frame; Type selects the fields.
type InboundFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"userId,omitempty"`
	Token    string `json:"token,omitempty"`
	MatchID  string `json:"matchId,omitempty"`
	SenderID string `json:"senderId,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Sender is the minimal identity attached to a pushed message.
type Sender struct {
	ID string `json:"id"`
}

type MessageFrame struct {
	Type    string      `json:"type"`
	Message *db.Message `json:"message"`
	Sender  Sender      `json:"sender"`
}

type MatchFrame struct {
	Type  string    `json:"type"`
	Match *db.Match `json:"match"`
}

type AuthenticatedFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeInbound parses a client frame. Failures are ProtocolErrors.
func DecodeInbound(raw []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return InboundFrame{}, svcErr.Protocol("malformed frame: %v", err)
	}
	f.Type = strings.TrimSpace(f.Type)
	if f.Type == "" {
		return InboundFrame{}, svcErr.Protocol("frame has no type")
	}
	return f, nil
}

// EncodeMessage builds the frame pushed to a message recipient.
func EncodeMessage(msg *db.Message) ([]byte, error) {
	return json.Marshal(MessageFrame{Type: FrameMessage, Message: msg, Sender: Sender{ID: msg.SenderID}})
}

// EncodeMatch builds the frame pushed to both participants of a new match.
func EncodeMatch(m *db.Match) ([]byte, error) {
	return json.Marshal(MatchFrame{Type: FrameMatch, Match: m})
}

func encodeAuthenticated(userID string) []byte {
	b, _ := json.Marshal(AuthenticatedFrame{Type: FrameAuthenticated, UserID: userID})
	return b
}

func encodeError(err error) []byte {
	b, _ := json.Marshal(ErrorFrame{Type: FrameError, Code: svcErr.Code(err), Message: svcErr.PublicMessage(err)})
	return b
}
