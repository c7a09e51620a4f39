package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var fieldHints = map[string]string{
	"Mode":         "mode must be audio, visual or audio-visual",
	"N":            "n must be >= 1",
	"EventDelay":   "delay must be > 0",
	"Events":       "events must be >= 1",
	"MatchPercent": "match-pct must be between 0 and 100",
}

// Validate checks the settings and reports every invalid field.
func (c SessionConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid session config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if hint, ok := fieldHints[fe.Field()]; ok {
			msgs = append(msgs, hint)
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid session config: %s", strings.Join(msgs, "; "))
}
