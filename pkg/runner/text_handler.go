package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/presentation/tui"
	"github.com/aretw0/stepwise/pkg/schema"
	"gopkg.in/yaml.v3"
)

// ContentRenderer transforms markdown before it is written, e.g. to ANSI.
type ContentRenderer func(string) (string, error)

// TextHandler implements a line-based interface, suitable for pipes and dumb
// terminals.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) ShowStep(ctx context.Context, props stepwise.StepProps) error {
	title := props.Step.Title
	if title == "" {
		title = schema.Humanize(props.Step.ID)
	}
	md := tui.StepMarkdown(tui.StepView{
		Title:    title,
		Subtitle: props.Step.Subtitle,
		Index:    props.StepIndex,
		Count:    props.StepCount,
		Errors:   props.Errors,
	})
	h.write(md)

	// Steps without fields get a summary of everything collected so far.
	if props.Step.Renderer == nil && len(props.AllWizardData) > 0 {
		out, err := yaml.Marshal(props.AllWizardData.Plain())
		if err != nil {
			return fmt.Errorf("render summary: %w", err)
		}
		h.write("```yaml\n" + string(out) + "```\n")
	}
	return nil
}

func (h *TextHandler) Ask(ctx context.Context, field schema.Field, current any) (any, error) {
	label := schema.Humanize(field.Key)
	k := fieldKind(field)

	hint := ""
	switch k {
	case kindBool:
		hint = " [y/n]"
	case kindList:
		hint = " (comma separated)"
	}
	if current != nil {
		shown := fmt.Sprint(current)
		if k == kindList {
			shown = joinList(current)
		}
		hint += fmt.Sprintf(" [%s]", shown)
	}

	for {
		text, err := h.readLine(ctx, label+hint+": ")
		if err != nil {
			return nil, err
		}
		if text == "" {
			return nil, nil
		}
		switch k {
		case kindBool:
			if b, ok := parseBool(text); ok {
				return b, nil
			}
			fmt.Fprintln(h.Writer, "Please answer y or n.")
			continue
		case kindList:
			return splitList(text), nil
		}
		return text, nil
	}
}

func (h *TextHandler) Choose(ctx context.Context, actions []Action) (Action, error) {
	if len(actions) == 0 {
		return "", fmt.Errorf("no actions to choose from")
	}
	labels := make([]string, len(actions))
	for i, a := range actions {
		labels[i] = fmt.Sprintf("[%s]%s", string(a)[:1], string(a)[1:])
	}
	prompt := strings.Join(labels, " ") + " > "

	for {
		text, err := h.readLine(ctx, prompt)
		if err != nil {
			return "", err
		}
		text = strings.ToLower(text)
		if text == "" {
			return actions[0], nil
		}
		for _, a := range actions {
			if text == string(a) || text == string(a)[:1] {
				return a, nil
			}
		}
		fmt.Fprintf(h.Writer, "Unknown action %q.\n", text)
	}
}

func (h *TextHandler) Confirm(ctx context.Context, message string) (bool, error) {
	text, err := h.readLine(ctx, message+" [y/N] ")
	if err != nil {
		return false, err
	}
	yes, _ := parseBool(text)
	return yes, nil
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return nil
}

func (h *TextHandler) write(md string) {
	output := md
	if h.Renderer != nil {
		if rendered, err := h.Renderer(md); err == nil {
			output = rendered
		}
	}
	fmt.Fprintln(h.Writer, strings.TrimSpace(output))
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so a cancelled context can abandon a
// pending read.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

func (h *TextHandler) readLine(ctx context.Context, prompt string) (string, error) {
	h.initPump()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(h.Writer, prompt)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}
