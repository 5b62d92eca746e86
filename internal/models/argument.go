package models

import (
	"sort"
	"strings"
	"time"
)

type Argument struct {
	ID          int64     `json:"id" db:"id"`
	DebateID    int64     `json:"debateId" db:"debate_id"`
	Faction     Faction   `json:"faction" db:"faction"`
	SpeakerName *string   `json:"speakerName" db:"speaker_name"`
	Argument    string    `json:"argument" db:"argument"`
	OrderIndex  int       `json:"orderIndex" db:"order_index"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// ArgumentInput is one argument as submitted by the admin form.
type ArgumentInput struct {
	SpeakerName *string `json:"speakerName,omitempty"`
	Argument    string  `json:"argument"`
}

type FactionArguments struct {
	Idubu   []Argument `json:"idubu"`
	Akagara []Argument `json:"akagara"`
}

// FilterValidArguments drops inputs whose argument text is blank.
func FilterValidArguments(args []ArgumentInput) []ArgumentInput {
	valid := make([]ArgumentInput, 0, len(args))
	for _, arg := range args {
		if strings.TrimSpace(arg.Argument) != "" {
			valid = append(valid, arg)
		}
	}
	return valid
}

// TransformArgumentsForInsert turns filtered inputs into rows for one
// faction. OrderIndex is the position in args, so args must already be
// filtered.
func TransformArgumentsForInsert(args []ArgumentInput, debateID int64, faction Faction) []Argument {
	rows := make([]Argument, 0, len(args))
	for i, arg := range args {
		var speaker *string
		if arg.SpeakerName != nil {
			if trimmed := strings.TrimSpace(*arg.SpeakerName); trimmed != "" {
				speaker = &trimmed
			}
		}
		rows = append(rows, Argument{
			DebateID:    debateID,
			Faction:     faction,
			SpeakerName: speaker,
			Argument:    strings.TrimSpace(arg.Argument),
			OrderIndex:  i,
		})
	}
	return rows
}

// PartitionArguments splits rows by faction, each side in order.
// Both sides are non-nil so they encode as [] rather than null.
func PartitionArguments(args []Argument) FactionArguments {
	out := FactionArguments{Idubu: []Argument{}, Akagara: []Argument{}}
	for _, arg := range args {
		switch arg.Faction {
		case FactionIdubu:
			out.Idubu = append(out.Idubu, arg)
		case FactionAkagara:
			out.Akagara = append(out.Akagara, arg)
		}
	}
	sort.SliceStable(out.Idubu, func(i, j int) bool { return out.Idubu[i].OrderIndex < out.Idubu[j].OrderIndex })
	sort.SliceStable(out.Akagara, func(i, j int) bool { return out.Akagara[i].OrderIndex < out.Akagara[j].OrderIndex })
	return out
}
