package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout
func ParseTemplate(name string) (*template.Template, error) {
	return template.ParseFS(TemplateFilesFS(), "layout.html", name)
}

type pages struct {
	login          *template.Template
	register       *template.Template
	forgotPassword *template.Template
	dashboard      *template.Template
}

func parsePages() (*pages, error) {
	p := &pages{}
	for name, dst := range map[string]**template.Template{
		"login.html":           &p.login,
		"register.html":        &p.register,
		"forgot_password.html": &p.forgotPassword,
		"dashboard.html":       &p.dashboard,
	} {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, err
		}
		*dst = tmpl
	}
	return p, nil
}

func (s *Server) render(w http.ResponseWriter, tmpl *template.Template, status int, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["AppName"] = s.appName

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		s.logger.Error().Err(err).Str("template", tmpl.Name()).Msg("rendering page")
	}
}
