package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/pkg/schema"
	"golang.org/x/term"
)

var askSurveyOne = func(prompt survey.Prompt, response interface{}, opts ...survey.AskOpt) error {
	return survey.AskOne(prompt, response, opts...)
}

// SurveyHandler drives steps with interactive terminal prompts.
type SurveyHandler struct {
	in       *os.File
	out      *os.File
	text     *TextHandler
	renderer ContentRenderer
}

// NewSurveyHandler creates an interactive handler on the given terminal.
func NewSurveyHandler(in, out *os.File, renderer ContentRenderer) *SurveyHandler {
	return &SurveyHandler{
		in:       in,
		out:      out,
		text:     NewTextHandler(strings.NewReader(""), out, WithTextHandlerRenderer(renderer)),
		renderer: renderer,
	}
}

// NewHandler picks the interactive handler when both ends are terminals and
// the line-based one otherwise.
func NewHandler(in io.Reader, out io.Writer, renderer ContentRenderer) IOHandler {
	inFile, inOK := in.(*os.File)
	outFile, outOK := out.(*os.File)
	if inOK && outOK && term.IsTerminal(int(inFile.Fd())) && term.IsTerminal(int(outFile.Fd())) {
		return NewSurveyHandler(inFile, outFile, renderer)
	}
	return NewTextHandler(in, out, WithTextHandlerRenderer(renderer))
}

func (h *SurveyHandler) ShowStep(ctx context.Context, props stepwise.StepProps) error {
	return h.text.ShowStep(ctx, props)
}

func (h *SurveyHandler) Ask(ctx context.Context, field schema.Field, current any) (any, error) {
	label := schema.Humanize(field.Key)

	switch fieldKind(field) {
	case kindBool:
		def, _ := current.(bool)
		answer := def
		if err := h.ask(ctx, &survey.Confirm{Message: label, Default: def}, &answer); err != nil {
			return nil, err
		}
		return answer, nil
	case kindList:
		answer := ""
		prompt := &survey.Input{Message: label, Default: joinList(current), Help: "Separate entries with commas"}
		if err := h.ask(ctx, prompt, &answer); err != nil {
			return nil, err
		}
		clean, err := SanitizeInput(answer)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(clean) == "" {
			return nil, nil
		}
		return splitList(clean), nil
	}

	answer := ""
	def := ""
	if current != nil {
		def = fmt.Sprint(current)
	}
	if err := h.ask(ctx, &survey.Input{Message: label, Default: def}, &answer); err != nil {
		return nil, err
	}
	clean, err := SanitizeInput(strings.TrimSpace(answer))
	if err != nil {
		return nil, err
	}
	if clean == "" {
		return nil, nil
	}
	return clean, nil
}

func (h *SurveyHandler) Choose(ctx context.Context, actions []Action) (Action, error) {
	if len(actions) == 0 {
		return "", fmt.Errorf("no actions to choose from")
	}
	options := make([]string, len(actions))
	byLabel := make(map[string]Action, len(actions))
	for i, a := range actions {
		options[i] = a.Label()
		byLabel[options[i]] = a
	}

	choice := ""
	if err := h.ask(ctx, &survey.Select{Message: "Action", Options: options, PageSize: len(options)}, &choice); err != nil {
		return "", err
	}
	return byLabel[choice], nil
}

func (h *SurveyHandler) Confirm(ctx context.Context, message string) (bool, error) {
	answer := false
	if err := h.ask(ctx, &survey.Confirm{Message: message, Default: false}, &answer); err != nil {
		return false, err
	}
	return answer, nil
}

func (h *SurveyHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.text.SystemOutput(ctx, msg)
}

// ask maps a terminal interrupt to context cancellation so the runner stops
// the same way for Ctrl+C and signals.
func (h *SurveyHandler) ask(ctx context.Context, prompt survey.Prompt, response interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var opts []survey.AskOpt
	if h.in != nil && h.out != nil {
		opts = append(opts, survey.WithStdio(h.in, h.out, h.out))
	}
	err := askSurveyOne(prompt, response, opts...)
	if errors.Is(err, terminal.InterruptErr) {
		return context.Canceled
	}
	return err
}
