package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type demoProfile struct {
	name       string
	age        int
	gender     Gender
	preference Gender
	complete   bool
	bio        string
}

var demoProfiles = []demoProfile{
	{"Alex", 29, GenderMale, GenderFemale, true, "Climber, coffee snob."},
	{"Sam", 27, GenderFemale, GenderMale, true, "Looking for a hiking buddy."},
	{"Jordan", 31, GenderFemale, GenderMale, true, "Bookshops and bad puns."},
	{"Casey", 33, GenderMale, GenderFemale, true, ""},
	{"Riley", 25, GenderOther, GenderOther, true, "Open to meeting anyone."},
	{"Taylor", 28, GenderFemale, GenderOther, true, "Amateur baker."},
	{"Morgan", 35, GenderMale, GenderMale, true, ""},
	{"Drew", 24, GenderFemale, GenderMale, false, ""},
}

// demoDecisions are (actor, recipient, liked) by profile name.
var demoDecisions = []struct {
	actor, recipient string
	liked            bool
}{
	{"Alex", "Sam", true},
	{"Sam", "Alex", true}, // mutual with above
	{"Jordan", "Alex", true},
	{"Casey", "Jordan", true},
	{"Jordan", "Casey", false},
	{"Taylor", "Riley", true},
}

// SeedTestData resets the database and populates it with demo users,
// decisions, the matches they imply and a short conversation.
//
// Behavior:
//  1. Clears messages, matches, decisions and users.
//  2. Creates one profile per gender/preference combination (plus one incomplete).
//  3. Records demo decisions and creates a Match for every mutual like.
//
// Compatible with MySQL, Postgres and SQLite.
func SeedTestData(db *gorm.DB) ([]User, error) {
	// --- Fresh start ---
	for _, table := range []string{"messages", "matches", "decisions", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	now := Now()
	byName := make(map[string]User, len(demoProfiles))
	users := make([]User, 0, len(demoProfiles))
	for i, p := range demoProfiles {
		slug := strings.ToLower(p.name)
		user := User{
			ID:                uuid.NewString(),
			ExternalID:        "seed-" + slug,
			Email:             slug + "@example.com",
			Name:              p.name,
			Age:               p.age,
			Gender:            p.gender,
			Preference:        p.preference,
			Photos:            []string{fmt.Sprintf("https://picsum.photos/seed/%s/600/800", slug)},
			Bio:               p.bio,
			IsProfileComplete: p.complete,
			LastActive:        now,
			// spread creation times so the feed order is obvious
			CreatedAt: now.Add(time.Duration(i-len(demoProfiles)) * time.Minute),
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to seed user: %w", err)
		}
		byName[p.name] = user
		users = append(users, user)
	}
	log.Printf("Seeded %d users.", len(users))

	liked := make(map[[2]string]bool)
	for _, d := range demoDecisions {
		actor, recipient := byName[d.actor], byName[d.recipient]
		decision := Decision{
			ID:          uuid.Must(uuid.NewV7()).String(),
			ActorID:     actor.ID,
			RecipientID: recipient.ID,
			Liked:       d.liked,
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&decision).Error; err != nil {
			return nil, fmt.Errorf("failed to seed decision: %w", err)
		}
		liked[[2]string{actor.ID, recipient.ID}] = d.liked
	}

	matches := 0
	for pair, ok := range liked {
		if !ok || !liked[[2]string{pair[1], pair[0]}] || pair[0] > pair[1] {
			continue
		}
		user1, user2 := CanonicalPair(pair[0], pair[1])
		match := Match{ID: uuid.Must(uuid.NewV7()).String(), User1ID: user1, User2ID: user2}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&match).Error; err != nil {
			return nil, fmt.Errorf("failed to seed match: %w", err)
		}
		matches++

		for i, content := range []string{"hey!", "hi, nice to match"} {
			sender := user1
			if i%2 == 1 {
				sender = user2
			}
			msg := Message{ID: uuid.Must(uuid.NewV7()).String(), MatchID: match.ID, SenderID: sender, Content: content}
			if err := db.Create(&msg).Error; err != nil {
				return nil, fmt.Errorf("failed to seed message: %w", err)
			}
		}
	}
	log.Printf("Seeded %d decisions and %d matches.", len(demoDecisions), matches)

	return users, nil
}
