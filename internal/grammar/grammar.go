// Package grammar loads static command grammars: the set of phrases a
// recognizer may report when it is not in open dictation mode.
package grammar

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	ErrEmptyGrammar = errors.New("grammar defines no phrases")
)

// FormatHelp is appended to load errors so users can find the file format.
const FormatHelp = "see https://www.w3.org/TR/speech-grammar/ for the SRGS (.grxml) format, or list one phrase per line"

// Command 静态命令语法
type Command struct {
	Path    string
	Phrases []string

	index map[string]string
}

// LoadFile reads a .grxml/.xml SRGS document or a plain phrase list.
func LoadFile(path string) (*Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read grammar %s: %w", path, err)
	}

	var phrases []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".grxml", ".xml":
		phrases, err = parseSRGS(bytes.NewReader(data))
	default:
		phrases, err = parseLines(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("parse grammar %s: %w", path, err)
	}

	cmd := New(phrases...)
	if len(cmd.Phrases) == 0 {
		return nil, fmt.Errorf("grammar %s: %w", path, ErrEmptyGrammar)
	}
	cmd.Path = path
	return cmd, nil
}

// New builds a grammar from phrases, dropping blanks and duplicates.
func New(phrases ...string) *Command {
	cmd := &Command{index: make(map[string]string)}
	for _, p := range phrases {
		p = strings.Join(strings.Fields(p), " ")
		key := Normalize(p)
		if key == "" {
			continue
		}
		if _, ok := cmd.index[key]; ok {
			continue
		}
		cmd.index[key] = p
		cmd.Phrases = append(cmd.Phrases, p)
	}
	return cmd
}

// Match reports the grammar phrase equal to text, ignoring case, punctuation and spacing.
func (c *Command) Match(text string) (string, bool) {
	if c == nil {
		return "", false
	}
	phrase, ok := c.index[Normalize(text)]
	return phrase, ok
}

// Normalize lowercases text, strips punctuation and collapses whitespace.
func Normalize(text string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}

func parseLines(r io.Reader) ([]string, error) {
	var phrases []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		phrases = append(phrases, line)
	}
	return phrases, scanner.Err()
}
