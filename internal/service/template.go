// ABOUTME: Message template rendering for bot queries
// ABOUTME: Substitutes {phone}; a template with no placeholder is sent literally

package service

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrTemplate means the message template references an unknown placeholder.
var ErrTemplate = errors.New("malformed message template")

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// RenderTemplate substitutes the phone value into the template's {phone}
// placeholder. A template without any placeholder is returned as-is; that is
// policy, not an error. A placeholder other than {phone} is a template error.
func RenderTemplate(template, phone string) (string, error) {
	var badToken string
	rendered := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if name != "phone" {
			badToken = match
			return match
		}
		return phone
	})
	if badToken != "" {
		return "", fmt.Errorf("%w: unknown placeholder %s", ErrTemplate, badToken)
	}
	return rendered, nil
}
