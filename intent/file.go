package intent

import "regexp"

// File types of a Moodle fetch.
const (
	FileLecture          = "lecture"
	FileHomework         = "homework"
	FileHomeworkSolution = "homework_solution"
)

// FileInfo describes the Moodle file a question asks for.
type FileInfo struct {
	Type   string `json:"type"`
	Number string `json:"number,omitempty"`
}

var (
	numberRe   = regexp.MustCompile(`\b(\d+)\b`)
	solutionRe = regexp.MustCompile(`(?i)\b(?:solution|correction|corrig[ée])`)
	homeworkRe = regexp.MustCompile(`(?i)\b(?:devoir|homework|home\s*work|travail|s[ée]rie)`)
)

// ExtractFileInfo reads the file type and first number from question.
// Solutions win over homework, anything else is a lecture.
func ExtractFileInfo(question string) FileInfo {
	info := FileInfo{Type: FileLecture}
	if m := numberRe.FindStringSubmatch(question); m != nil {
		info.Number = m[1]
	}
	switch {
	case solutionRe.MatchString(question):
		info.Type = FileHomeworkSolution
	case homeworkRe.MatchString(question):
		info.Type = FileHomework
	}
	return info
}
