package world

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ScriptData is the static part of a world script: game settings, layout
// tables and characters. Object status is never taken from a script.
type ScriptData struct {
	GameState  map[string]any               `json:"gameState"`
	Layout     map[string]map[string]string `json:"storeLayout"`
	Characters []map[string]string          `json:"characters"`
}

var (
	gameStateClass = regexp.MustCompile(`(?s)public static class GameState\s*\{(.*?)\}`)
	stringField    = regexp.MustCompile(`string\s+(\w+)\s*=\s*"(.*?)";`)
	intField       = regexp.MustCompile(`int\s+(\w+)\s*=\s*(-?\d+);`)
	boolField      = regexp.MustCompile(`bool\s+(\w+)\s*=\s*(true|false);`)

	stringDict = regexp.MustCompile(`(?s)(\w+)\s*=\s*new Dictionary<string,\s*string>\s*\{(.*?)\};`)
	dictEntry  = regexp.MustCompile(`\{\s*"(.*?)",\s*"(.*?)"\s*\}`)

	characterList = regexp.MustCompile(`(?s)public static List<(\w+)>\s*Characters\s*=\s*new List<\w+>\s*\{(.*?)\};`)
	characterItem = regexp.MustCompile(`(?s)new (\w+)\s*\{(.*?)\}`)
	stringProp    = regexp.MustCompile(`(?s)(\w+)\s*=\s*"(.*?)"`)
)

// ExtractScript pulls static declarations out of a C# world script.
func ExtractScript(src string) *ScriptData {
	data := &ScriptData{
		GameState:  make(map[string]any),
		Layout:     map[string]map[string]string{"locations": {}, "aisleContents": {}},
		Characters: make([]map[string]string, 0),
	}

	if m := gameStateClass.FindStringSubmatch(src); m != nil {
		for _, line := range strings.Split(m[1], "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "public static") {
				continue
			}
			if f := stringField.FindStringSubmatch(line); f != nil {
				data.GameState[f[1]] = f[2]
			}
			if f := intField.FindStringSubmatch(line); f != nil {
				if n, err := strconv.Atoi(f[2]); err == nil {
					data.GameState[f[1]] = n
				}
			}
			if f := boolField.FindStringSubmatch(line); f != nil {
				data.GameState[f[1]] = f[2] == "true"
			}
		}
	}

	for _, m := range stringDict.FindAllStringSubmatch(src, -1) {
		table := lowerFirst(m[1])
		if data.Layout[table] == nil {
			data.Layout[table] = make(map[string]string)
		}
		for _, e := range dictEntry.FindAllStringSubmatch(m[2], -1) {
			data.Layout[table][e[1]] = e[2]
		}
	}

	if m := characterList.FindStringSubmatch(src); m != nil {
		for _, item := range characterItem.FindAllStringSubmatch(m[2], -1) {
			if item[1] != m[1] {
				continue
			}
			props := make(map[string]string)
			for _, p := range stringProp.FindAllStringSubmatch(item[2], -1) {
				props[strings.TrimSpace(p[1])] = strings.TrimSpace(p[2])
			}
			data.Characters = append(data.Characters, props)
		}
	}

	return data
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
