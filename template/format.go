// Package template - Chat-Template-Engine für alignforge
// Modul format: Abbildung roher Datensatz-Records auf Konversations-Strings
package template

import (
	"strings"

	"github.com/alignforge/alignforge/api"
)

// FormatSample formt ein (prompt, response) Paar in die Konversationsform
// des Modells um. Bilder und Videos werden an die User-Nachricht gehaengt;
// collate injiziert die Platzhalter.
func (t *Template) FormatSample(system, prompt, response string, images []api.ImageData, video *api.VideoData) (string, error) {
	var msgs []api.Message
	if system != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: system})
	}
	msgs = append(msgs,
		api.Message{Role: "user", Content: prompt, Images: images, Video: video},
		api.Message{Role: "assistant", Content: response},
	)

	var sb strings.Builder
	if err := t.Execute(&sb, Values{Messages: msgs}); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// FormatPreferenceSample formt ein Preference-Paar (prompt, better, worse)
// in zwei vollstaendige Konversationen um.
func (t *Template) FormatPreferenceSample(system, prompt, better, worse string, images []api.ImageData) (betterConv, worseConv string, err error) {
	betterConv, err = t.FormatSample(system, prompt, better, images, nil)
	if err != nil {
		return "", "", err
	}

	worseConv, err = t.FormatSample(system, prompt, worse, images, nil)
	if err != nil {
		return "", "", err
	}

	return betterConv, worseConv, nil
}

// EnsureSuffix haengt eos an, falls die Konversation nicht bereits damit endet
func EnsureSuffix(conversation, eos string) string {
	if eos == "" || strings.HasSuffix(strings.TrimRight(conversation, "\n"), eos) {
		return conversation
	}
	return conversation + eos
}
