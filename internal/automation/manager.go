//go:build !no_automation

package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/yuin/gopher-lua/parse"
)

// ErrInvalidScript is returned by Save when the Lua source does not parse.
var ErrInvalidScript = errors.New("invalid lua script")

// validScriptID checks that a script ID is safe to use as a filename component.
func validScriptID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return false
	}
	return true
}

// Manager loads, saves and lists automation scripts from a directory.
// Each script is a .lua file whose first line is a JSON metadata comment:
//
//	-- {"name":"Hall light","enabled":true}
type Manager struct {
	dir string
	mu  sync.RWMutex
}

// NewManager creates a new script manager rooted at dir.
// It ensures the directory exists.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scripts dir: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// List returns all scripts in the directory sorted by ID.
func (m *Manager) List() ([]*Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}

	var scripts []*Script
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lua") {
			continue
		}
		s, err := m.parseFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			slog.Warn("skip unreadable script", "file", e.Name(), "err", err)
			continue
		}
		scripts = append(scripts, s)
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].ID < scripts[j].ID })
	return scripts, nil
}

// Get returns a single script by ID (filename stem).
func (m *Manager) Get(id string) (*Script, error) {
	if !validScriptID(id) {
		return nil, fmt.Errorf("invalid script id: %q", id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.parseFile(filepath.Join(m.dir, id+".lua"))
}

// Save checks that the Lua source parses and writes the script to disk.
// A script without an ID gets one derived from its name.
func (m *Manager) Save(s *Script) (*Script, error) {
	if _, err := parse.Parse(strings.NewReader(s.LuaCode), s.Meta.Name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if s.ID != "" && !validScriptID(s.ID) {
		return nil, fmt.Errorf("invalid script id: %q", s.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = slugify(s.Meta.Name)
		if s.ID == "" {
			s.ID = "script"
		}
		base := s.ID
		for i := 1; ; i++ {
			if _, err := os.Stat(filepath.Join(m.dir, s.ID+".lua")); os.IsNotExist(err) {
				break
			}
			s.ID = fmt.Sprintf("%s_%d", base, i)
		}
	}

	s.FilePath = filepath.Join(m.dir, s.ID+".lua")
	if err := os.WriteFile(s.FilePath, []byte(serializeScript(s)), 0o644); err != nil {
		return nil, fmt.Errorf("write script: %w", err)
	}
	return s, nil
}

// Delete removes a script file by ID.
func (m *Manager) Delete(id string) error {
	if !validScriptID(id) {
		return fmt.Errorf("invalid script id: %q", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(filepath.Join(m.dir, id+".lua")); err != nil {
		return fmt.Errorf("delete script: %w", err)
	}
	return nil
}

func (m *Manager) parseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := &Script{
		ID:       strings.TrimSuffix(filepath.Base(path), ".lua"),
		FilePath: path,
	}

	code := string(data)
	if first, rest, _ := strings.Cut(code, "\n"); strings.HasPrefix(first, "-- {") {
		if err := json.Unmarshal([]byte(strings.TrimPrefix(first, "-- ")), &s.Meta); err != nil {
			slog.Warn("script metadata parse error", "file", path, "err", err)
		}
		code = rest
	}
	s.LuaCode = strings.TrimLeft(code, "\n")
	return s, nil
}

func serializeScript(s *Script) string {
	var b strings.Builder

	meta, _ := json.Marshal(s.Meta)
	b.WriteString("-- ")
	b.Write(meta)
	b.WriteString("\n")

	if s.LuaCode != "" {
		b.WriteString("\n")
		b.WriteString(s.LuaCode)
		if !strings.HasSuffix(s.LuaCode, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
