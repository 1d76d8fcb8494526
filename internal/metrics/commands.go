package metrics

import (
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

// Command categories used in the command-type histogram.
const (
	CommandExamine   = "examine"
	CommandUse       = "use"
	CommandMove      = "move"
	CommandTake      = "take"
	CommandTalk      = "talk"
	CommandInventory = "inventory"
	CommandOther     = "other"
)

var english = stopwords.MustGet("en")

var commandVerbs = map[string]string{
	"look": CommandExamine, "examine": CommandExamine, "inspect": CommandExamine,
	"x": CommandExamine, "l": CommandExamine, "search": CommandExamine,
	"read": CommandExamine, "check": CommandExamine, "study": CommandExamine,

	"use": CommandUse, "try": CommandUse, "apply": CommandUse, "put": CommandUse,
	"place": CommandUse, "insert": CommandUse, "wedge": CommandUse, "jam": CommandUse,
	"push": CommandUse, "pull": CommandUse, "open": CommandUse, "close": CommandUse,
	"combine": CommandUse, "tie": CommandUse, "bend": CommandUse, "hold": CommandUse,
	"light": CommandUse, "burn": CommandUse, "break": CommandUse, "turn": CommandUse,
	"flip": CommandUse, "hang": CommandUse, "prop": CommandUse, "lay": CommandUse,
	"stand": CommandUse, "focus": CommandUse, "hook": CommandUse, "fish": CommandUse,
	"pin": CommandUse, "mount": CommandUse,

	"go": CommandMove, "walk": CommandMove, "enter": CommandMove, "climb": CommandMove,
	"north": CommandMove, "south": CommandMove, "east": CommandMove, "west": CommandMove,
	"n": CommandMove, "s": CommandMove, "e": CommandMove, "w": CommandMove,
	"up": CommandMove, "down": CommandMove, "leave": CommandMove, "cross": CommandMove,

	"take": CommandTake, "get": CommandTake, "grab": CommandTake, "pick": CommandTake,
	"drop": CommandTake, "collect": CommandTake,

	"talk": CommandTalk, "ask": CommandTalk, "say": CommandTalk, "shout": CommandTalk,
	"call": CommandTalk,

	"inventory": CommandInventory, "i": CommandInventory, "inv": CommandInventory,
}

// CommandType buckets a command by its verb. Leading stopwords ("then",
// "the") are skipped and the first content word decides.
func CommandType(command string) string {
	for _, w := range tokens(command) {
		if kind, ok := commandVerbs[w]; ok {
			return kind
		}
		if !english.Contains(w) {
			break
		}
	}
	return CommandOther
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
