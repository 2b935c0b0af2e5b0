package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallnest/campusrag/log"
	"github.com/smallnest/campusrag/rag"
	"github.com/smallnest/campusrag/store"
	"github.com/tmc/langchaingo/llms"
)

// SummaryHeader opens every summary.
const SummaryHeader = "Jusqu'ici, nous avons parlé de :"

const (
	DefaultPriorLimit      = 800
	DefaultTranscriptLimit = 1500
	DefaultMaxTurns        = 8
	DefaultSummaryLimit    = 1200
	DefaultSummaryTokens   = 220
	summaryTemperature     = 0.1
)

const summaryInstruction = `Tu maintiens un résumé cumulatif et exploitable d'une conversation (utilisateur ↔ assistant).
Objectif : ne garder que ce qui aide à poursuivre l'échange (sujet, intentions, contraintes, décisions).
Interdit : pas de généralités hors conversation, pas de sources, pas d'URL, pas de formules de politesse.
Exigences :
- Rédige en français, de façon concise et factuelle.
- Commence par « ` + SummaryHeader + ` » puis 2 à 5 puces brèves.
- Ajoute si présent : « Intentions/attentes : ... », « Contraintes/préférences : ... », « Points ouverts : ... ».
- Longueur : 10 lignes au maximum. Pas de citation mot à mot, reformule.`

const summaryFinalInstruction = `Produis le nouveau résumé cumulatif au format demandé.
Utilise des puces pour la première section, puis des lignes courtes pour le reste.
N'invente rien. Évite les détails triviaux et toute explication de méthode.`

// Turn is one conversational exchange shown to the summary model.
type Turn struct {
	Role    string
	Content string
}

// TurnsFromMessages projects stored messages into turns. Any role other
// than assistant is treated as user.
func TurnsFromMessages(msgs []*store.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		role := store.RoleUser
		if m.Role == store.RoleAssistant {
			role = store.RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Content: m.Content})
	}
	return turns
}

// SummaryConfig configures a RollingSummaryBuilder. Zero values take the
// defaults above.
type SummaryConfig struct {
	// Model is the summary model id.
	Model string
	// FallbackModel is used when Model is empty, normally the answer model.
	FallbackModel   string
	MaxTokens       int
	PriorLimit      int
	TranscriptLimit int
	MaxTurns        int
	OutputLimit     int
	Logger          log.Logger
}

// RollingSummaryBuilder produces bounded cumulative summaries.
type RollingSummaryBuilder struct {
	llm    llms.Model
	config SummaryConfig
	logger log.Logger
}

// NewRollingSummaryBuilder creates a builder over llm.
func NewRollingSummaryBuilder(llm llms.Model, config SummaryConfig) *RollingSummaryBuilder {
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultSummaryTokens
	}
	if config.PriorLimit <= 0 {
		config.PriorLimit = DefaultPriorLimit
	}
	if config.TranscriptLimit <= 0 {
		config.TranscriptLimit = DefaultTranscriptLimit
	}
	if config.MaxTurns <= 0 {
		config.MaxTurns = DefaultMaxTurns
	}
	if config.OutputLimit <= 0 {
		config.OutputLimit = DefaultSummaryLimit
	}
	return &RollingSummaryBuilder{
		llm:    llm,
		config: config,
		logger: log.OrDefault(config.Logger),
	}
}

// Model returns the model id summaries are requested from.
func (b *RollingSummaryBuilder) Model() string {
	if b.config.Model != "" {
		return b.config.Model
	}
	return b.config.FallbackModel
}

// Messages returns the chat messages sent for prior and turns.
func (b *RollingSummaryBuilder) Messages(prior string, turns []Turn) []llms.MessageContent {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, summaryInstruction),
	}
	if prior = strings.TrimSpace(prior); prior != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman,
			"Résumé précédent :\n"+rag.Clamp(prior, b.config.PriorLimit)))
	}

	if len(turns) > b.config.MaxTurns {
		turns = turns[len(turns)-b.config.MaxTurns:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Role, t.Content))
	}
	msgs = append(msgs,
		llms.TextParts(llms.ChatMessageTypeHuman,
			"Nouveaux échanges (à intégrer sans tout réécrire) :\n"+rag.Clamp(strings.Join(lines, "\n"), b.config.TranscriptLimit)),
		llms.TextParts(llms.ChatMessageTypeHuman, summaryFinalInstruction),
	)
	return msgs
}

// Build returns the new cumulative summary. The result always starts with
// SummaryHeader and never exceeds the output limit.
func (b *RollingSummaryBuilder) Build(ctx context.Context, prior string, turns []Turn) (string, error) {
	resp, err := b.llm.GenerateContent(ctx, b.Messages(prior, turns),
		llms.WithModel(b.Model()),
		llms.WithTemperature(summaryTemperature),
		llms.WithMaxTokens(b.config.MaxTokens),
	)
	if err != nil {
		return "", rag.ModelFailure("summary completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", rag.ModelFailure("summary completion returned no choices", nil)
	}

	summary := strings.TrimSpace(resp.Choices[0].Content)
	if summary == "" {
		return "", rag.ModelFailure("summary completion returned empty content", nil)
	}
	if !strings.HasPrefix(summary, SummaryHeader) {
		summary = SummaryHeader + "\n" + summary
	}
	summary = rag.Clamp(summary, b.config.OutputLimit)
	b.logger.Debug("summary.built prior=%d turns=%d len=%d", rag.Len(prior), len(turns), rag.Len(summary))
	return summary, nil
}
