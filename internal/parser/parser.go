// Package parser turns raw model output into typed results. Model output is
// unreliable: it may be wrapped in code fences, surrounded by prose, have
// fields of the wrong type, or be cut off mid-string.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"terratruce-gateway/internal/report"
)

type Kind string

const (
	KindAnalysis Kind = "analysis"
	KindChat     Kind = "chat"
)

// ParseFailure is returned when a reachable response is not usable. Raw is
// the untouched model output, kept for logs only.
type ParseFailure struct {
	Kind   Kind
	Reason string
	Raw    string
	Err    error
}

func (f *ParseFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("parse %s response: %s: %v", f.Kind, f.Reason, f.Err)
	}
	return fmt.Sprintf("parse %s response: %s", f.Kind, f.Reason)
}

func (f *ParseFailure) Unwrap() error {
	return f.Err
}

var fenceRe = regexp.MustCompile("```(?:json)?\\n?")

// StripFences removes Markdown code-fence markers (```json or ```) wherever
// they occur and trims surrounding whitespace. Text without fences is only
// trimmed.
func StripFences(raw string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
}

// ParseAnalysis decodes a risk report. The result must carry a
// risk_analysis section; fields of the wrong type are left at their zero
// value rather than rejecting the whole report.
func ParseAnalysis(raw string) (*report.RiskReport, error) {
	text := StripFences(raw)
	if text == "" {
		return nil, &ParseFailure{Kind: KindAnalysis, Reason: "empty response", Raw: raw}
	}

	var rep report.RiskReport
	if err := decodeObject(text, &rep); err != nil {
		return nil, &ParseFailure{Kind: KindAnalysis, Reason: "invalid JSON", Raw: raw, Err: err}
	}
	if err := rep.Validate(); err != nil {
		return nil, &ParseFailure{Kind: KindAnalysis, Reason: "invalid report", Raw: raw, Err: err}
	}
	return &rep, nil
}

type chatPayload struct {
	Answer    json.RawMessage `json:"answer"`
	RiskScore json.RawMessage `json:"risk_score"`
}

// ParseChat decodes a {"answer": ..., "risk_score": ...} reply into the
// display string. A numeric risk_score is rendered after the answer. When
// the JSON is broken, the answer string is salvaged if one can be found;
// salvaged reports whether that happened.
func ParseChat(raw string) (reply string, salvaged bool, err error) {
	text := StripFences(raw)
	if text == "" {
		return "", false, &ParseFailure{Kind: KindChat, Reason: "empty response", Raw: raw}
	}

	var p chatPayload
	if err := decodeObject(text, &p); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, errNoObject) {
			if answer, ok := SalvageAnswer(text); ok {
				return answer, true, nil
			}
		}
		return "", false, &ParseFailure{Kind: KindChat, Reason: "invalid JSON", Raw: raw, Err: err}
	}

	if len(p.Answer) == 0 {
		return "", false, &ParseFailure{Kind: KindChat, Reason: "missing answer", Raw: raw}
	}
	var answer string
	if err := json.Unmarshal(p.Answer, &answer); err != nil || answer == "" {
		return "", false, &ParseFailure{Kind: KindChat, Reason: "answer is not a non-empty string", Raw: raw}
	}

	if score, ok := numeric(p.RiskScore); ok {
		answer += RenderScore(score)
	}
	return answer, false, nil
}

// RenderScore is the suffix appended to a chat answer carrying a score.
func RenderScore(score float64) string {
	return "\n\n**Overall Risk Score:** " + strconv.FormatFloat(score, 'f', -1, 64) + "/100"
}

var answerRe = regexp.MustCompile(`"answer"\s*:\s*"((?:[^"\\]|\\.)*)`)

var unescaper = strings.NewReplacer(
	`\n`, "\n",
	`\t`, "\t",
	`\"`, `"`,
	`\/`, `/`,
	`\\`, `\`,
)

// SalvageAnswer pulls the value of the "answer" field out of truncated or
// otherwise invalid JSON. The value runs to the next unescaped quote or to
// the end of the text.
func SalvageAnswer(text string) (string, bool) {
	m := answerRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	body := m[1]

	var answer string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &answer); err != nil {
		// Truncation can leave a dangling backslash or half an escape.
		body = strings.TrimSuffix(body, `\`)
		answer = unescaper.Replace(body)
	}
	answer = strings.TrimSpace(answer)
	return answer, answer != ""
}

var errNoObject = errors.New("no JSON object found")

// decodeObject unmarshals text into v. If text is not valid JSON as a
// whole, the span from the first '{' to the last '}' is tried, which
// drops prose the model put around the object. Type mismatches on
// individual fields are tolerated.
func decodeObject(text string, v any) error {
	err := json.Unmarshal([]byte(text), v)
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
		if start < 0 || end <= start {
			return err
		}
		if start == 0 && end == len(text)-1 {
			return err
		}
		err = json.Unmarshal([]byte(text[start:end+1]), v)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			// the top-level value itself is not an object
			return errNoObject
		}
		return nil
	}
	return err
}

func numeric(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}
