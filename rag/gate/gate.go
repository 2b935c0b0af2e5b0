// Package gate decides whether retrieval runs and whether its result is used.
package gate

import (
	"regexp"
	"strings"

	"github.com/smallnest/campusrag/rag"
)

const (
	// MaxSmallTalkLen is the longest question still treated as small talk.
	MaxSmallTalkLen = 30
	// DefaultScoreThreshold is the minimum top fused score for context use.
	DefaultScoreThreshold = 0.35
)

// Small talk vocabulary. Openers can start a message, acknowledgements stand
// alone or open a chain of chit-chat, fillers only follow one of those.
const (
	smallTalkOpeners = `salut|bonjour|bonsoir|coucou|hello|hi|hey|yo|hola|merci|thanks|thank you|thx|` +
		`ça va|ca va|comment ça va|comment ca va|comment vas-tu|comment allez-vous|how are you|` +
		`good (?:morning|evening|night)|bonne (?:journée|soirée|nuit)|au revoir|bye|à plus|a plus`
	smallTalkAcks    = `ok|okay|d['’]accord|super|cool|top|parfait|génial`
	smallTalkFillers = `beaucoup|a lot|bien|très bien|tout le monde|à tous|everyone|all|there|` +
		`et toi|et vous|and you|you`
	smallTalkSep = `[\s,!?.;:…()~\-\p{So}]`
)

// smallTalk matches a whole message made only of greetings, thanks and
// acknowledgements in French and English, with punctuation or emoji between
// and after them.
var smallTalk = regexp.MustCompile(`(?i)^(?:` + smallTalkOpeners + `|` + smallTalkAcks + `)` +
	`(?:` + smallTalkSep + `+(?:` + smallTalkOpeners + `|` + smallTalkAcks + `|` + smallTalkFillers + `))*` +
	smallTalkSep + `*$`)

// IsSmallTalk reports whether q is a short greeting or chit-chat message that
// needs no retrieval.
func IsSmallTalk(q string) bool {
	q = strings.TrimSpace(q)
	return rag.Len(q) <= MaxSmallTalkLen && smallTalk.MatchString(q)
}

// ScoreGate drops retrieval context whose best fused score is too low.
type ScoreGate struct {
	Threshold float64
}

// NewScoreGate returns a gate at threshold. Zero selects
// DefaultScoreThreshold and a negative value lets every score pass.
func NewScoreGate(threshold float64) ScoreGate {
	switch {
	case threshold == 0:
		threshold = DefaultScoreThreshold
	case threshold < 0:
		threshold = 0
	}
	return ScoreGate{Threshold: threshold}
}

// Pass reports whether best clears the threshold.
func (g ScoreGate) Pass(best float64) bool {
	return best >= g.Threshold
}
