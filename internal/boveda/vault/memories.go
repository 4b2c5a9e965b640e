package vault

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Memory is one entry of the archive's memories index.
type Memory struct {
	FilePath    string `json:"file_path"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
}

// The index is hand-edited, so it gets schema-checked before anything
// trusts it. An index that fails validation is treated as empty.
const memoriesSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["file_path"],
    "properties": {
      "file_path": {"type": "string", "minLength": 1},
      "title": {"type": "string"},
      "description": {"type": "string"},
      "date": {"type": "string"}
    }
  }
}`

var memoriesSchema = jsonschema.MustCompileString("memories.json", memoriesSchemaJSON)

// Memories returns the archive's memories index. The index is loaded
// once; an absent, malformed or invalid index yields an empty slice.
func (s *Store) Memories() []Memory {
	s.memOnce.Do(func() {
		s.memories = []Memory{}

		data, err := s.resolve(s.memoriesPath)
		if err != nil {
			s.logger.Info("vault: memories index unavailable", "path", s.memoriesPath)
			return
		}

		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			s.logger.Warn("vault: memories index is not valid JSON", "error", err)
			return
		}
		if err := memoriesSchema.Validate(doc); err != nil {
			s.logger.Warn("vault: memories index failed validation", "error", err)
			return
		}

		var entries []Memory
		if err := json.Unmarshal(data, &entries); err != nil {
			s.logger.Warn("vault: memories index decode", "error", err)
			return
		}
		s.memories = entries
	})
	return s.memories
}

// ChatHistory returns the tail of the exported chat transcript, or ""
// when no transcript is available. The transcript is loaded once.
func (s *Store) ChatHistory() string {
	s.chatOnce.Do(func() {
		text, err := s.Text(s.transcriptPath)
		if err != nil {
			s.logger.Info("vault: chat transcript unavailable", "path", s.transcriptPath)
			return
		}
		s.chat = tailRunes(text, transcriptTailRunes)
	})
	return s.chat
}

// tailRunes returns the last n runes of s, cutting on rune boundaries
// so multi-byte characters survive.
func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
