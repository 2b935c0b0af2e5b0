// Package intent classifies questions before they reach the answer engine.
//
// Classify is pure and stateless. It recognizes requests to post on ED
// Discussion, requests to fetch a Moodle file and small talk. Questions about
// ED or Moodle themselves ("c'est quoi Moodle ?") are blocked from the action
// intents and fall through to the engine.
package intent

import (
	"regexp"
	"strings"

	"github.com/smallnest/campusrag/rag/gate"
)

// Kind tags an Intent.
type Kind int

const (
	KindNone Kind = iota
	KindSmallTalk
	KindEd
	KindMoodle
)

func (k Kind) String() string {
	switch k {
	case KindSmallTalk:
		return "small_talk"
	case KindEd:
		return "ed"
	case KindMoodle:
		return "moodle"
	default:
		return "none"
	}
}

// Actions.
const (
	ActionPostQuestion = "post_question"
	ActionFetchFile    = "fetch_file"
)

// Intent is the classification result. Action is set for KindEd and
// KindMoodle. File is set for Moodle fetches.
type Intent struct {
	Kind    Kind
	Action  string
	Pattern string
	File    *FileInfo
}

// None is the empty intent.
func None() Intent { return Intent{Kind: KindNone} }

// SmallTalk is the small talk intent.
func SmallTalk() Intent { return Intent{Kind: KindSmallTalk} }

// Ed is an ED Discussion action.
func Ed(action string) Intent { return Intent{Kind: KindEd, Action: action} }

// Moodle is a Moodle action.
func Moodle(action string) Intent { return Intent{Kind: KindMoodle, Action: action} }

type config struct {
	kind   Kind
	action string
	match  []*regexp.Regexp
	block  []*regexp.Regexp
}

// detect returns the first config whose match pattern hits and whose block
// patterns do not.
func detect(question string, configs []config) (config, string, bool) {
	for _, c := range configs {
		if anyMatch(c.block, question) {
			continue
		}
		for _, re := range c.match {
			if re.MatchString(question) {
				return c, re.String(), true
			}
		}
	}
	return config{}, "", false
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Classify returns the intent of question. ED actions are checked first,
// then Moodle fetches, then small talk.
func Classify(question string) Intent {
	q := strings.TrimSpace(question)
	if q == "" {
		return None()
	}

	if c, pattern, ok := detect(q, edConfigs); ok {
		in := Ed(c.action)
		in.Pattern = pattern
		return in
	}
	if c, pattern, ok := detect(q, moodleConfigs); ok {
		in := Moodle(c.action)
		in.Pattern = pattern
		info := ExtractFileInfo(q)
		in.File = &info
		return in
	}
	if gate.IsSmallTalk(q) {
		return SmallTalk()
	}
	return None()
}
