package db

import (
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	// GenderOther doubles as the "show everyone" preference.
	GenderOther Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type Location struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	City string  `json:"city,omitempty"`
}

// User is owned by the profile service; the matching core only reads it.
//
// Indexes:
//   - idx_user_feed(is_profile_complete, gender, created_at)
//     Serves the candidate feed scan in its stable order.
type User struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	ExternalID        string    `gorm:"uniqueIndex;size:128;not null" json:"-"`
	Email             string    `gorm:"uniqueIndex;size:255;not null" json:"-"`
	Name              string    `gorm:"size:128;not null" json:"name"`
	Age               int       `gorm:"not null" json:"age"`
	Gender            Gender    `gorm:"size:16;not null;index:idx_user_feed,priority:2" json:"gender"`
	Preference        Gender    `gorm:"size:16;not null" json:"preference"`
	Photos            []string  `gorm:"serializer:json;type:text" json:"photos"`
	Bio               string    `gorm:"type:text" json:"bio,omitempty"`
	Location          *Location `gorm:"serializer:json;type:text" json:"location,omitempty"`
	IsProfileComplete bool      `gorm:"not null;default:false;index:idx_user_feed,priority:1" json:"isProfileComplete"`
	LastActive        time.Time `json:"lastActive"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index:idx_user_feed,priority:3" json:"createdAt"`
}

// Decision represents an actor's like/skip decision on a recipient.
// Decisions are final: the first one recorded for a pair stands.
//
// Indexes:
//   - idx_decision_pair(actor_id, recipient_id) UNIQUE
//     One decision per ordered pair; also serves the reverse-like lookup.
//   - idx_recipient_liked_created(recipient_id, liked, created_at)
//     Optimizes "who liked me" lists with pagination.
//
// Fields:
//   - ActorID: The user making the decision.
//   - RecipientID: The user being liked/skipped.
//   - Liked: true if liked, false if skipped.
type Decision struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	ActorID     string    `gorm:"size:36;not null;uniqueIndex:idx_decision_pair,priority:1" json:"fromUserId"`
	RecipientID string    `gorm:"size:36;not null;uniqueIndex:idx_decision_pair,priority:2;index:idx_recipient_liked_created,priority:1" json:"toUserId"`
	Liked       bool      `gorm:"not null;index:idx_recipient_liked_created,priority:2" json:"liked"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_recipient_liked_created,priority:3" json:"createdAt"`
}

// Action returns the decision kind stored in the row.
func (d Decision) Action() Action {
	if d.Liked {
		return ActionLike
	}
	return ActionSkip
}

// Match is an unordered pair stored canonically: User1ID < User2ID.
// idx_match_pair makes "insert if absent" atomic at the database level.
type Match struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	User1ID   string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:1" json:"user1Id"`
	User2ID   string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:2;index:idx_match_user2" json:"user2Id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// CanonicalPair orders two user ids the way Match stores them.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func (m Match) HasUser(userID string) bool {
	return userID != "" && (m.User1ID == userID || m.User2ID == userID)
}

// OtherUser returns the participant that is not userID.
func (m Match) OtherUser(userID string) string {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// MatchWithUsers is the read model behind the matches list.
type MatchWithUsers struct {
	Match
	User1 User `json:"user1"`
	User2 User `json:"user2"`
}

// Message ids are UUIDv7, so (created_at, id) follows insertion order.
type Message struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	MatchID   string    `gorm:"size:36;not null;index:idx_message_match_created,priority:1" json:"matchId"`
	SenderID  string    `gorm:"size:36;not null" json:"senderId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_message_match_created,priority:2" json:"createdAt"`
}

// MessageWithSender is the read model behind a match's history.
type MessageWithSender struct {
	Message
	Sender User `json:"sender"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{&User{}, &Decision{}, &Match{}, &Message{}}
}
