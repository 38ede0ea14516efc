package popup

import (
	"bytes"
	"html/template"

	"github.com/loveofminnesota/pinmap/internal/pin"
)

// Content renders popup markup for an entity. owner toggles the owner-only
// affordances (delete/menu); views is the count shown to non-owners.
type Content interface {
	Render(e pin.Entity, views int, owner bool) (string, error)
}

// popupTemplate is the default popup fragment. Kept deliberately small: the
// web client styles it, the controller only owns its data binding.
var popupTemplate = template.Must(template.New("popup").Parse(`<div class="pin-popup" data-pin="{{.ID}}">
{{- if .Emoji}}<span class="pin-emoji">{{.Emoji}}</span>{{end -}}
{{- if .MediaURL}}<img class="pin-media" src="{{.MediaURL}}" alt="">{{end -}}
<p class="pin-description">{{.Description}}</p>
{{- if .Owner}}<button class="pin-delete" data-action="delete" data-pin="{{.ID}}">Delete</button>
{{- else}}<span class="pin-views">{{.Views}} views</span>{{end -}}
</div>`))

type popupData struct {
	ID          string
	Emoji       string
	MediaURL    string
	Description string
	Views       int
	Owner       bool
}

// TemplateContent is the default html/template-backed Content.
type TemplateContent struct {
	tmpl *template.Template
}

// NewTemplateContent returns the default popup renderer.
func NewTemplateContent() *TemplateContent {
	return &TemplateContent{tmpl: popupTemplate}
}

func (c *TemplateContent) Render(e pin.Entity, views int, owner bool) (string, error) {
	var buf bytes.Buffer
	err := c.tmpl.Execute(&buf, popupData{
		ID:          e.ID,
		Emoji:       e.Emoji,
		MediaURL:    e.MediaURL,
		Description: e.Description,
		Views:       views,
		Owner:       owner,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
