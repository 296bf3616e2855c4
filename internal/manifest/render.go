// Package manifest renders Kubernetes manifest templates. Templates are never
// modified: rendering produces new text, written to a new path.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	TokenAPIName  = "<API_NAME>"
	TokenImageURI = "<IMAGE_URI>"
)

// ErrTokenNotFound is returned when a bound token does not occur in the
// template, which is what re-rendering an already rendered file looks like.
var ErrTokenNotFound = errors.New("token not found in template")

// Bindings maps literal tokens to their replacement.
type Bindings map[string]string

// Render replaces every occurrence of every bound token. The replacement is
// plain text, not YAML-aware. Tokens a template does not need can be listed
// in optional.
func Render(template string, bindings Bindings, optional ...string) (string, error) {
	skip := make(map[string]bool, len(optional))
	for _, o := range optional {
		skip[o] = true
	}

	tokens := make([]string, 0, len(bindings))
	for tok := range bindings {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	var missing []string
	pairs := make([]string, 0, 2*len(tokens))
	for _, tok := range tokens {
		if !strings.Contains(template, tok) {
			if !skip[tok] {
				missing = append(missing, tok)
			}
			continue
		}
		pairs = append(pairs, tok, bindings[tok])
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, strings.Join(missing, ", "))
	}
	return strings.NewReplacer(pairs...).Replace(template), nil
}

// RenderFile renders src into dst. dst must not be src.
func RenderFile(src, dst string, bindings Bindings, optional ...string) error {
	if same, err := samePath(src, dst); err != nil {
		return err
	} else if same {
		return fmt.Errorf("refusing to render %s in place", src)
	}
	b, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	out, err := Render(string(b), bindings, optional...)
	if err != nil {
		return fmt.Errorf("render %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(dst, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write rendered manifest: %w", err)
	}
	return nil
}

// Remaining lists tokens of the form <UPPER_CASE> left in text.
func Remaining(text string) []string {
	var found []string
	for {
		i := strings.IndexByte(text, '<')
		if i < 0 {
			return found
		}
		text = text[i+1:]
		j := strings.IndexByte(text, '>')
		if j < 0 {
			return found
		}
		if name := text[:j]; isToken(name) {
			found = append(found, "<"+name+">")
		}
		text = text[j+1:]
	}
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r == '_') {
			return false
		}
	}
	return true
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}
