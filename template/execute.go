// Package template - Chat-Template-Engine für alignforge
// Modul execute: Template-Ausführung und Nachrichten-Kollation
package template

import (
	"bytes"
	"io"
	"slices"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/alignforge/alignforge/api"
)

// ImagePlaceholder markiert die Bildposition in formatierten Konversationen.
// Der Prozessor ersetzt die Markierung durch die Bild-Token des Modells.
const ImagePlaceholder = "<image>"

type Values struct {
	Messages []api.Message
	Prompt   string
	Response string

	// forceLegacy is a flag used to test compatibility with legacy templates
	forceLegacy bool
}

func (t *Template) Execute(w io.Writer, v Values) error {
	system, messages := collate(v.Messages)
	vars, err := t.Vars()
	if err != nil {
		return err
	}

	if !v.forceLegacy && slices.Contains(vars, "messages") {
		return t.Template.Execute(w, map[string]any{
			"System":   system,
			"Messages": messages,
			"Response": v.Response,
		})
	}

	system = ""
	var b bytes.Buffer
	var prompt, responseStr string
	for _, m := range messages {
		execute := func() error {
			if err := t.Template.Execute(&b, map[string]any{
				"System":   system,
				"Prompt":   prompt,
				"Response": responseStr,
			}); err != nil {
				return err
			}

			system = ""
			prompt = ""
			responseStr = ""
			return nil
		}

		switch m.Role {
		case "system":
			if prompt != "" || responseStr != "" {
				if err := execute(); err != nil {
					return err
				}
			}
			system = m.Content
		case "user":
			if responseStr != "" {
				if err := execute(); err != nil {
					return err
				}
			}
			prompt = m.Content
		case "assistant":
			responseStr = m.Content
		}
	}

	var cut bool
	nodes := deleteNode(t.Template.Root.Copy(), func(n parse.Node) bool {
		if field, ok := n.(*parse.FieldNode); ok && slices.Contains(field.Ident, "Response") {
			cut = true
			return false
		}

		return cut
	})

	tree := parse.Tree{Root: nodes.(*parse.ListNode)}
	if err := template.Must(template.New("").AddParseTree("", &tree)).Execute(&b, map[string]any{
		"System":   system,
		"Prompt":   prompt,
		"Response": responseStr,
	}); err != nil {
		return err
	}

	_, err = io.Copy(w, &b)
	return err
}

// collate messages based on role. consecutive messages of the same role are
// merged into a single message. collate also collects and returns all system
// messages. collate mutates message content injecting image placeholders for
// attached images that the text does not reference yet.
func collate(msgs []api.Message) (string, []*api.Message) {
	var system []string
	var collated []*api.Message
	for i := range msgs {
		if msgs[i].Role == "system" {
			system = append(system, msgs[i].Content)
		}

		if n := len(msgs[i].Images); n > 0 && strings.Count(msgs[i].Content, ImagePlaceholder) < n {
			missing := n - strings.Count(msgs[i].Content, ImagePlaceholder)
			msgs[i].Content = strings.Repeat(ImagePlaceholder, missing) + "\n" + msgs[i].Content
		}

		if len(collated) > 0 && collated[len(collated)-1].Role == msgs[i].Role {
			collated[len(collated)-1].Content += "\n\n" + msgs[i].Content
		} else {
			collated = append(collated, &msgs[i])
		}
	}

	return strings.Join(system, "\n\n"), collated
}
