package generation

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Default generation options.
const (
	DefaultTemperature     = 0.7
	DefaultTopK            = 40
	DefaultTopP            = 0.95
	DefaultMaxOutputTokens = 1024
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New()

// Options tunes sampling. Zero values mean "unspecified" and are replaced by
// the package defaults in WithDefaults.
type Options struct {
	Temperature     float64 `json:"temperature,omitempty" validate:"gte=0,lte=2"`
	TopK            int     `json:"topK,omitempty" validate:"gte=0"`
	TopP            float64 `json:"topP,omitempty" validate:"gte=0,lte=1"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty" validate:"gte=0,lte=65536"`
}

// WithDefaults returns a copy of o with every unspecified field defaulted.
func (o Options) WithDefaults() Options {
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.TopK == 0 {
		o.TopK = DefaultTopK
	}
	if o.TopP == 0 {
		o.TopP = DefaultTopP
	}
	if o.MaxOutputTokens == 0 {
		o.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return o
}

// Request is a single text-continuation request.
type Request struct {
	Prompt  string  `json:"prompt"`
	Options Options `json:"options"`
}

// Validate checks the prompt and options and returns an INVALID_PROMPT error
// describing the first problem found.
func (r Request) Validate() error {
	if r.Prompt == "" {
		return NewError(CodeInvalidInput, "prompt is empty", nil)
	}
	if !utf8.ValidString(r.Prompt) {
		return NewError(CodeInvalidInput, "prompt is not valid UTF-8 text", nil)
	}
	if err := validate.Struct(r.Options); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
		}
		return NewError(CodeInvalidInput, "invalid generation options: "+strings.Join(fields, ", "), err)
	}
	return nil
}
