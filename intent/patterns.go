package intent

import "regexp"

// Go's \b only knows ASCII word characters, so boundaries next to accented
// letters are written as (?:^|\s) or as a trailing \s.

func compile(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?i)` + p)
	}
	return res
}

func aboutPatterns(target, gap string) []*regexp.Regexp {
	tail := gap + `\b` + target + `\b`
	return compile(
		`\b(?:c['’]?est\s+quoi|qu['’]?est[- ]ce\s+que?)\b`+tail,
		`\bcomment\s+(?:marche|fonctionne|utiliser?|connecter?)\b`+tail,
		`(?:^|\s)(?:où|ou)\s+(?:trouver?|est)\b`+tail,
		`\bexplique[rz]?\b`+tail,
		`\bwhat\s+is\b`+tail,
		`\bhow\s+(?:does|do|to)\s+(?:use|work)\b`+tail,
		`\bwhere\s+(?:is|can\s+i\s+find)\b`+tail,
		`\bexplain\b`+tail,
		`\btell\s+me\s+about\b`+tail,
	)
}

const (
	edFr = `(?:sur|à|a)\s+(?:ed\s*discussion|edstem|ed)\b`
	edEn = `\b(?:on|to)\s+(?:ed\s*discussion|edstem|ed)\b`
)

var edConfigs = []config{
	{
		kind:   KindEd,
		action: ActionPostQuestion,
		match: compile(
			`(?:^|\s)(?:post[eé]?[rz]?|publi[eé]?[rz]?|met[st]?[rz]?|mettre|ajoute[rz]?|envoie[rz]?|envoyer|pose[rz]?|demande[rz]?|partage[rz]?)\s(?:.*\s)?`+edFr,
			`(?:^|\s)(?:cr[ée]{1,2}[rz]?|faire?|fais)\s(?:.*\s)?(?:post|thread|discussion|sujet)\s(?:.*\s)?`+edFr,
			`\b(?:post|publish|share|send|put|add|submit|ask|create)\b.*`+edEn,
			`\b(?:make|create|start)\b.*\b(?:post|thread|discussion|question)\b.*`+edEn,
		),
		block: aboutPatterns("ed", ".*"),
	},
}

var moodleConfigs = []config{
	{
		kind:   KindMoodle,
		action: ActionFetchFile,
		match: compile(
			`\b(?:fetch|get|show|display|download|retrieve|bring)\s+(?:me\s+)?(?:the\s+)?(?:lecture|homework|solution|file|document|cours|moodle)`,
			`\b(?:fetch|get|show|display|download|retrieve|bring)\s+(?:me\s+)?the\s+.*\bmoodle\b`,
			`\b(?:want|need|would\s+like)\s+(?:to\s+)?(?:fetch|get|see|view|download|retrieve)\s+(?:the\s+)?(?:lecture|homework|solution|file|document|cours|moodle)`,
			`(?:^|\s)(?:donne[rz]?|r[ée]cup[éeè]re[rz]?|obteni[rz]?|t[ée]l[ée]charge[rz]?|charge[rz]?|voir|affiche[rz]?|montre[rz]?|ouvri[rz]?|cherche[rz]?|trouve[rz]?)(?:[\s-]+moi)?\s+(?:le\s+|la\s+|les\s+)?(?:cours|devoir|lecture|fichier|document|moodle)`,
			`(?:^|\s)(?:donne[rz]?|r[ée]cup[éeè]re[rz]?|obteni[rz]?|t[ée]l[ée]charge[rz]?|affiche[rz]?|montre[rz]?|ouvri[rz]?|cherche[rz]?|trouve[rz]?)(?:[\s-]+moi)?\s(?:.*\s)?moodle\b`,
			`\b(?:veux|voudrais|souhaite|ai\s+besoin)\s+(?:de\s+|d['’])?(?:r[ée]cup[ée]rer|obtenir|voir|afficher|t[ée]l[ée]charger|donner)\s+(?:le\s+|la\s+|les\s+)?(?:cours|devoir|lecture|fichier|document|moodle)`,
			`(?:^|\s)(?:lecture|leçon|lesson|devoir|homework|home\s*work|travail|solution|correction|corrigé|cours)\s+(?:\d+|[a-z])\b`,
			`\b(?:cours|leçon|lecture|devoir|homework)\s+(?:semaine|week)\s+\d+`,
			`\b(?:semaine|week)\s+\d+\s+(?:de|du|of)\s+`,
			`\b(?:sur|on|from)\s+moodle\b`,
		),
		block: aboutPatterns("moodle", ".{0,50}"),
	},
}
