package puzzle

import (
	"github.com/ashureev/fixedness-lab/internal/domain"
)

// Verification is the verifier's judgment of one narrative reply.
type Verification struct {
	IsSolutionSuccess    bool `json:"isSolutionSuccess"`
	CommandMatchedIntent bool `json:"commandMatchedIntent"`
	ReplyHadSuccessCue   bool `json:"replyHadSuccessCue"`
	ReplyHadFailureCue   bool `json:"replyHadFailureCue"`
}

// Decide is the success rule: the command must target the unconventional
// use and the reply must carry a success cue and no failure cue. A reply
// mixing both cue kinds counts as a failure.
func Decide(matchedIntent, successCue, failureCue bool) bool {
	return matchedIntent && successCue && !failureCue
}

// Verify judges whether reply confirms that command solved the puzzle
// identified by activePuzzleID.
func (a *Analyzer) Verify(command, reply string, puzzles []domain.PuzzleDefinition, activePuzzleID string) Verification {
	if activePuzzleID == "" || command == "" || reply == "" {
		return Verification{}
	}
	var (
		p     domain.PuzzleDefinition
		found bool
	)
	for _, candidate := range puzzles {
		if candidate.ID == activePuzzleID {
			p, found = candidate, true
			break
		}
	}
	if !found {
		return Verification{}
	}

	text := Normalize(reply)
	v := Verification{
		CommandMatchedIntent: a.MatchesIntent(command, p),
		ReplyHadSuccessCue:   a.success.Contains(text),
		ReplyHadFailureCue:   a.failure.Contains(text),
	}
	v.IsSolutionSuccess = Decide(v.CommandMatchedIntent, v.ReplyHadSuccessCue, v.ReplyHadFailureCue)
	return v
}
