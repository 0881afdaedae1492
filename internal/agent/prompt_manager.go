package agent

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

//go:embed prompts
var defaultPrompts embed.FS

// Template names.
const (
	PlanPrompt         = "plan.tmpl"
	ContinuationPrompt = "continuation.tmpl"
	ErrorFixPrompt     = "error_fix.tmpl"
	QuestionPrompt     = "question.tmpl"
	NextTasksPrompt    = "next_tasks.tmpl"
)

// PromptManager holds the system instruction and the prompt templates. The
// embedded defaults can be overridden file by file from Directory.
type PromptManager struct {
	Directory string

	system string
	tmpl   *template.Template
}

func NewPromptManager(dir string) (*PromptManager, error) {
	pm := &PromptManager{Directory: dir}
	if err := pm.load(); err != nil {
		return nil, err
	}
	return pm, nil
}

func (pm *PromptManager) load() error {
	sources := map[string]string{}
	var mdNames []string

	err := fs.WalkDir(defaultPrompts, "prompts", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := defaultPrompts.ReadFile(p)
		if err != nil {
			return err
		}
		sources[path.Base(p)] = string(data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("read embedded prompts: %w", err)
	}

	if pm.Directory != "" {
		files, err := os.ReadDir(pm.Directory)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read prompts directory: %w", err)
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !(strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".tmpl")) {
				continue
			}
			data, err := os.ReadFile(filepath.Join(pm.Directory, name))
			if err != nil {
				return fmt.Errorf("read prompt %s: %w", name, err)
			}
			sources[name] = string(data)
		}
	}

	for name := range sources {
		if strings.HasSuffix(name, ".md") {
			mdNames = append(mdNames, name)
		}
	}

	// system.md leads; further .md files are appended in name order.
	sort.Slice(mdNames, func(i, j int) bool {
		if (mdNames[i] == "system.md") != (mdNames[j] == "system.md") {
			return mdNames[i] == "system.md"
		}
		return mdNames[i] < mdNames[j]
	})
	var parts []string
	for _, name := range mdNames {
		if s := strings.TrimSpace(sources[name]); s != "" {
			parts = append(parts, s)
		}
	}
	pm.system = strings.Join(parts, "\n\n---\n\n")

	root := template.New("prompts").Funcs(template.FuncMap{"join": strings.Join})
	for _, name := range []string{PlanPrompt, ContinuationPrompt, ErrorFixPrompt, QuestionPrompt, NextTasksPrompt} {
		src, ok := sources[name]
		if !ok {
			return fmt.Errorf("prompt template %s missing", name)
		}
		if _, err := root.New(name).Parse(src); err != nil {
			return fmt.Errorf("parse prompt %s: %w", name, err)
		}
	}
	pm.tmpl = root
	return nil
}

// SystemPrompt returns the system instruction sent with planning prompts.
func (pm *PromptManager) SystemPrompt() string {
	return pm.system
}

// Render executes the named template.
func (pm *PromptManager) Render(name string, data any) (string, error) {
	var b strings.Builder
	if err := pm.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
