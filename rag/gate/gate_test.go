package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSmallTalk(t *testing.T) {
	yes := []string{
		"Hi", "hello!", "  Bonjour ", "merci beaucoup", "ça va ?", "Salut, ça va?", "ok", "thanks a lot",
		"Hi there!", "super", "ok merci", "Coucou 👋", "D'accord, merci !", "Bonjour tout le monde",
	}
	for _, q := range yes {
		assert.True(t, IsSmallTalk(q), q)
	}

	no := []string{
		"Quand commence le semestre ?",
		"Highway access to campus",
		"hi, how do I register for the exam session in January?",
		"okapi",
		"",
		"Hi, where is BC 410?",
		"top 3 master programs?",
		"ok when is the exam?",
		"super, c'est quoi ML-101 ?",
		"cool, who teaches CS-101?",
		"bonjour, horaires du Rolex ?",
		"you",
	}
	for _, q := range no {
		assert.False(t, IsSmallTalk(q), q)
	}
}

func TestIsSmallTalk_LengthBound(t *testing.T) {
	q := strings.TrimSpace(strings.Repeat("hello ", 5))
	assert.True(t, IsSmallTalk(q))
	assert.False(t, IsSmallTalk(q+" hi"))
}

func TestScoreGate(t *testing.T) {
	g := NewScoreGate(0)
	assert.Equal(t, DefaultScoreThreshold, g.Threshold)
	assert.False(t, g.Pass(0.2))
	assert.True(t, g.Pass(0.35))
	assert.True(t, g.Pass(0.9))

	open := NewScoreGate(-1)
	assert.True(t, open.Pass(0))

	custom := NewScoreGate(0.02)
	assert.True(t, custom.Pass(2.0/61))
	assert.False(t, custom.Pass(1.0/61))
}
