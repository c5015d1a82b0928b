package db

import (
	"fmt"
	"strings"
)

// Action is the swipe decision. The zero value is invalid.
type Action uint8

const (
	ActionLike Action = iota + 1
	ActionSkip
)

// ParseAction accepts "like" and "skip" (case-insensitive).
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like":
		return ActionLike, nil
	case "skip":
		return ActionSkip, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

func (a Action) String() string {
	switch a {
	case ActionLike:
		return "like"
	case ActionSkip:
		return "skip"
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

func (a Action) Valid() bool {
	return a == ActionLike || a == ActionSkip
}

func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid action %d", uint8(a))
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
