package protocol

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/ironsheep/yail-server/internal/yail"
)

const (
	// MaxPromptLength is the longest generation prompt accepted, in characters.
	MaxPromptLength = 1000
	// MaxSearchLength is the longest search phrase accepted, in characters.
	MaxSearchLength = 200
)

// ConfigParams lists the settings openai-config may change.
var ConfigParams = []string{"model", "size", "quality", "style", "system_prompt"}

var httpMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true, "HEAD": true,
	"OPTIONS": true, "PATCH": true, "CONNECT": true, "TRACE": true,
}

// Parse turns one line of client input into a Command. It never fails:
// anything it cannot make sense of becomes Invalid.
//
// Keywords are case-insensitive. For search, gen and system_prompt the rest
// of the line is a single argument with its inner spacing preserved.
func Parse(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	keyword, rest := splitKeyword(line)
	if keyword == "" {
		return Invalid{Reason: "empty command"}
	}

	if httpMethods[keyword] && looksLikeHTTP(rest) {
		return HTTPProbe{Method: keyword}
	}

	switch strings.ToLower(keyword) {
	case "video", "camera":
		return noArgs(Video{}, keyword, rest)
	case "files":
		return noArgs(Files{}, keyword, rest)
	case "next":
		return noArgs(Next{}, keyword, rest)
	case "quit":
		return noArgs(Quit{}, keyword, rest)
	case "search":
		return parseSearch(rest)
	case "gen", "generate":
		return parseGenerate(BackendDefault, rest)
	case "gen-gemini":
		return parseGenerate(BackendGemini, rest)
	case "gfx":
		return parseGfx(rest)
	case "openai-config":
		return parseConfig(rest)
	}
	return Invalid{Reason: fmt.Sprintf("unknown command: %s", keyword)}
}

// splitKeyword returns the first word of line and the remainder with outer
// whitespace removed.
func splitKeyword(line string) (string, string) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

// looksLikeHTTP accepts "GET /path HTTP/1.1" and bare "GET /" style lines.
func looksLikeHTTP(rest string) bool {
	return strings.HasPrefix(rest, "/") || strings.Contains(rest, "HTTP/")
}

func noArgs(cmd Command, keyword, rest string) Command {
	if rest != "" {
		return Invalid{Reason: fmt.Sprintf("%s takes no arguments", strings.ToLower(keyword))}
	}
	return cmd
}

func parseSearch(rest string) Command {
	n := utf8.RuneCountInString(rest)
	switch {
	case n == 0:
		return Invalid{Reason: "search command requires search terms"}
	case n > MaxSearchLength:
		return Invalid{Reason: fmt.Sprintf("search terms too long (max %d characters)", MaxSearchLength)}
	}
	return Search{Terms: rest}
}

func parseGenerate(backend Backend, rest string) Command {
	n := utf8.RuneCountInString(rest)
	switch {
	case n == 0:
		return Invalid{Reason: "gen command requires a prompt"}
	case n > MaxPromptLength:
		return Invalid{Reason: fmt.Sprintf("prompt too long (max %d characters)", MaxPromptLength)}
	}
	return Generate{Backend: backend, Prompt: rest}
}

func parseGfx(rest string) Command {
	if rest == "" {
		return Invalid{Reason: "gfx command requires a graphics mode"}
	}
	if strings.ContainsAny(rest, " \t") {
		return Invalid{Reason: "gfx takes a single graphics mode"}
	}
	mode, err := yail.ParseMode(rest)
	if err != nil {
		return Invalid{Reason: fmt.Sprintf("invalid graphics mode %q: valid modes are 8, 9, 16", rest)}
	}
	return Gfx{Mode: mode}
}

func parseConfig(rest string) Command {
	if rest == "" {
		return Config{}
	}

	param, value := splitKeyword(rest)
	param = strings.ToLower(param)
	if !slices.Contains(ConfigParams, param) {
		return Invalid{Reason: fmt.Sprintf("invalid config parameter: %s (valid: %s)", param, strings.Join(ConfigParams, ", "))}
	}
	if value == "" {
		return Invalid{Reason: fmt.Sprintf("config parameter '%s' requires a value", param)}
	}
	if param != "system_prompt" && strings.ContainsAny(value, " \t") {
		return Invalid{Reason: fmt.Sprintf("config parameter '%s' takes a single value", param)}
	}
	return Config{Param: param, Value: value}
}
