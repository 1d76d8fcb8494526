package puzzle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideIsConjunctive(t *testing.T) {
	for _, matched := range []bool{false, true} {
		for _, success := range []bool{false, true} {
			for _, failure := range []bool{false, true} {
				want := matched && success && !failure
				assert.Equal(t, want, Decide(matched, success, failure),
					"matched=%v success=%v failure=%v", matched, success, failure)
			}
		}
	}
}

func TestVerifySuccess(t *testing.T) {
	a := MustDefaultAnalyzer()

	got := a.Verify(
		"wedge the rusty pipe under the door",
		"The pipe wedges perfectly — the door clicks open, access granted.",
		fixturePuzzles(), "p1",
	)

	assert.Equal(t, Verification{
		IsSolutionSuccess:    true,
		CommandMatchedIntent: true,
		ReplyHadSuccessCue:   true,
		ReplyHadFailureCue:   false,
	}, got)
}

func TestVerifyMixedCuesFail(t *testing.T) {
	a := MustDefaultAnalyzer()

	got := a.Verify(
		"wedge the rusty pipe under the door",
		"It works, but then the pipe slips and the door slams shut.",
		fixturePuzzles(), "p1",
	)

	assert.True(t, got.CommandMatchedIntent)
	assert.True(t, got.ReplyHadSuccessCue)
	assert.True(t, got.ReplyHadFailureCue)
	assert.False(t, got.IsSolutionSuccess)
}

func TestVerifyConventionalCommandNeverSucceeds(t *testing.T) {
	a := MustDefaultAnalyzer()

	got := a.Verify("use rusty pipe to turn the valve", "The valve turns successfully.", fixturePuzzles(), "p1")

	assert.False(t, got.CommandMatchedIntent)
	assert.True(t, got.ReplyHadSuccessCue)
	assert.False(t, got.IsSolutionSuccess)
}

func TestVerifyFlippingOneInputFlipsResult(t *testing.T) {
	a := MustDefaultAnalyzer()
	const (
		intent   = "wedge the rusty pipe under the door"
		noIntent = "use the rusty pipe"
		success  = "Access granted."
		neutral  = "The corridor hums."
		mixed    = "Access granted, but nothing happens."
	)

	base := a.Verify(intent, success, fixturePuzzles(), "p1")
	assert.True(t, base.IsSolutionSuccess)

	assert.False(t, a.Verify(noIntent, success, fixturePuzzles(), "p1").IsSolutionSuccess)
	assert.False(t, a.Verify(intent, neutral, fixturePuzzles(), "p1").IsSolutionSuccess)
	assert.False(t, a.Verify(intent, mixed, fixturePuzzles(), "p1").IsSolutionSuccess)
}

func TestVerifyShortCircuits(t *testing.T) {
	a := MustDefaultAnalyzer()

	assert.Equal(t, Verification{}, a.Verify("wedge the rusty pipe", "access granted", fixturePuzzles(), ""))
	assert.Equal(t, Verification{}, a.Verify("", "access granted", fixturePuzzles(), "p1"))
	assert.Equal(t, Verification{}, a.Verify("wedge the rusty pipe", "", fixturePuzzles(), "p1"))
	assert.Equal(t, Verification{}, a.Verify("wedge the rusty pipe", "access granted", fixturePuzzles(), "nope"))
}
